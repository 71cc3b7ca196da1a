package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edusphere/enrollment-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollment records.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, course_id, semester, grades, final_grade, active, created_at, updated_at`

// Create persists a new enrollment record, assigning id and timestamps.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now

	const query = `INSERT INTO enrollments (id, student_id, course_id, semester, grades, final_grade, active, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :semester, :grades, :final_grade, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindActiveByID returns the active enrollment with the given id. Inactive
// records are invisible here; callers get sql.ErrNoRows for both missing and
// deactivated ids.
func (r *EnrollmentRepository) FindActiveByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1 AND active = TRUE`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByID returns an enrollment regardless of its active flag. Used by the
// deactivation path, which must still see soft-deleted records.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// List returns active enrollments matching the filter conjunction.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	conditions := []string{"active = TRUE"}
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.CourseIDs != nil {
		// An empty set matches nothing by design of ANY('{}').
		conditions = append(conditions, fmt.Sprintf("course_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.CourseIDs))
	}

	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE %s ORDER BY created_at DESC`,
		enrollmentColumns, strings.Join(conditions, " AND "))

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// Save persists the mutable fields of an enrollment. Soft deletion goes
// through here as well: callers flip Active and Save.
func (r *EnrollmentRepository) Save(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()

	const query = `UPDATE enrollments SET grades = :grades, final_grade = :final_grade, active = :active, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("save enrollment: %w", err)
	}
	return nil
}
