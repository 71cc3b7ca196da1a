package models

import (
	"time"

	"github.com/lib/pq"
)

// Enrollment links a student to a course for a given semester and carries the
// per-evaluation grades together with the derived weighted final grade.
// Records are never physically removed; deactivation flips Active to false and
// hides the record from every read path.
type Enrollment struct {
	ID         string          `db:"id" json:"id"`
	StudentID  string          `db:"student_id" json:"student_id"`
	CourseID   string          `db:"course_id" json:"course_id"`
	Semester   string          `db:"semester" json:"semester"`
	Grades     pq.Float64Array `db:"grades" json:"grades"`
	FinalGrade float64         `db:"final_grade" json:"final_grade"`
	Active     bool            `db:"active" json:"active"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// EnrollmentFilter provides filters for listing active enrollments.
// CourseIDs, when non-nil, restricts results to the given course set; an empty
// non-nil slice matches nothing (a professor who teaches no courses sees an
// empty listing).
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Semester  string
	CourseIDs []string
}

// CourseRef identifies a course owned by the remote course catalog.
type CourseRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}
