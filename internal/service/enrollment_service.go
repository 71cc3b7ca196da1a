package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edusphere/enrollment-api/internal/models"
	appErrors "github.com/edusphere/enrollment-api/pkg/errors"
)

type enrollmentStore interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindActiveByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error)
	Save(ctx context.Context, enrollment *models.Enrollment) error
}

type courseCatalog interface {
	GetEvaluationWeights(ctx context.Context, courseID string) ([]float64, error)
	GetCoursesForProfessor(ctx context.Context, professorID string) ([]models.CourseRef, error)
}

// CreateEnrollmentRequest describes the enrollment creation payload. Grades
// are optional; a nil pointer means every evaluation starts at zero.
type CreateEnrollmentRequest struct {
	StudentID string     `json:"student_id" validate:"required"`
	CourseID  string     `json:"course_id" validate:"required"`
	Semester  string     `json:"semester" validate:"required"`
	Grades    *[]float64 `json:"grades"`
}

// UpdateGradesRequest carries the replacement grade sequence for an update.
type UpdateGradesRequest struct {
	Grades *[]float64 `json:"grades"`
}

// EnrollmentService orchestrates the enrollment lifecycle: creation with
// weight-derived final grades, active-only reads, grade updates and soft
// deletion.
type EnrollmentService struct {
	store     enrollmentStore
	catalog   courseCatalog
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(store enrollmentStore, catalog courseCatalog, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{store: store, catalog: catalog, validator: validate, logger: logger}
}

// Create registers a new enrollment. Weights are fetched fresh from the
// catalog; supplied grades must match their count and range, omitted grades
// zero-fill every evaluation slot.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "student, course and semester are required")
	}

	weights, err := s.fetchWeights(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}

	var grades []float64
	if req.Grades != nil {
		grades = *req.Grades
		if len(grades) != len(weights) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "the number of grades and weights must match")
		}
		if err := validateGradeRange(grades); err != nil {
			return nil, err
		}
	} else {
		grades = make([]float64, len(weights))
	}

	final, err := ComputeFinalGrade(grades, weights)
	if err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		StudentID:  req.StudentID,
		CourseID:   req.CourseID,
		Semester:   req.Semester,
		Grades:     grades,
		FinalGrade: final,
		Active:     true,
	}
	if err := s.store.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create enrollment")
	}

	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("course_id", enrollment.CourseID))
	return enrollment, nil
}

// GetByID returns the active enrollment with the given id, or nil when it is
// missing or deactivated. Absence is not an error; callers decide semantics.
func (s *EnrollmentService) GetByID(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.store.FindActiveByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// List returns active enrollments matching the filter.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	enrollments, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// UpdateGrades replaces the grade sequence of an active enrollment and
// recomputes the final grade against the course's current weights. Grades are
// assigned before the weights fetch; a count mismatch against fresher weights
// surfaces from ComputeFinalGrade.
func (s *EnrollmentService) UpdateGrades(ctx context.Context, id string, req UpdateGradesRequest) (*models.Enrollment, error) {
	enrollment, err := s.store.FindActiveByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found or inactive")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load enrollment")
	}

	if req.Grades == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "an array of grades is required")
	}
	if err := validateGradeRange(*req.Grades); err != nil {
		return nil, err
	}
	enrollment.Grades = *req.Grades

	weights, err := s.fetchWeights(ctx, enrollment.CourseID)
	if err != nil {
		return nil, err
	}

	final, err := ComputeFinalGrade(enrollment.Grades, weights)
	if err != nil {
		return nil, err
	}
	enrollment.FinalGrade = final

	if err := s.store.Save(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to save enrollment")
	}

	s.logger.Info("enrollment grades updated",
		zap.String("enrollment_id", enrollment.ID),
		zap.Float64("final_grade", enrollment.FinalGrade))
	return enrollment, nil
}

// Deactivate soft-deletes an enrollment. The lookup is deliberately not
// restricted to active records: deactivation must still see records that were
// already soft-deleted, making a repeat call a harmless no-op.
func (s *EnrollmentService) Deactivate(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load enrollment")
	}

	enrollment.Active = false
	if err := s.store.Save(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to deactivate enrollment")
	}

	s.logger.Info("enrollment deactivated", zap.String("enrollment_id", enrollment.ID))
	return enrollment, nil
}

// fetchWeights loads the course weights, normalising catalog failures into the
// domain taxonomy. Typed catalog errors pass through unchanged.
func (s *EnrollmentService) fetchWeights(ctx context.Context, courseID string) ([]float64, error) {
	weights, err := s.catalog.GetEvaluationWeights(ctx, courseID)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "could not fetch course evaluation weights")
	}
	if len(weights) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidWeights, "course has no evaluation weights configured")
	}
	return weights, nil
}

func validateGradeRange(grades []float64) error {
	for _, grade := range grades {
		if grade < 0 || grade > 5 {
			return appErrors.Clone(appErrors.ErrValidation, "each grade must be a number between 0 and 5")
		}
	}
	return nil
}
