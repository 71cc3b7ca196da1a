package service

import (
	"context"

	"github.com/edusphere/enrollment-api/internal/models"
	appErrors "github.com/edusphere/enrollment-api/pkg/errors"
)

// Operation identifies an enrollment action subject to authorization.
type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpList   Operation = "list"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// PolicyInput carries everything a rule may need to decide: the target record
// for read/update/delete, the raw payload keys for update shape checks, the
// student id named in a create payload and the requested list filter.
type PolicyInput struct {
	Target           *models.Enrollment
	PayloadKeys      []string
	PayloadStudentID string
	Filter           models.EnrollmentFilter
}

// PolicyDecision is the resolved outcome of an allowed operation: the
// effective student id for creation and the effective filter for listing.
type PolicyDecision struct {
	StudentID string
	Filter    models.EnrollmentFilter
}

type policyRule func(ctx context.Context, p *AccessPolicy, principal models.Principal, in PolicyInput) (*PolicyDecision, error)

// AccessPolicy evaluates the role × operation authorization matrix. Professor
// checks resolve the taught course set through the catalog on every decision;
// results are never cached across calls.
type AccessPolicy struct {
	catalog courseCatalog
}

// NewAccessPolicy constructs AccessPolicy.
func NewAccessPolicy(catalog courseCatalog) *AccessPolicy {
	return &AccessPolicy{catalog: catalog}
}

// policyMatrix is the single authorization table: operation × role → rule.
// A missing entry denies the operation for that role.
var policyMatrix = map[Operation]map[models.UserRole]policyRule{
	OpCreate: {
		models.RoleAdmin:   createAsAdmin,
		models.RoleStudent: createAsStudent,
	},
	OpRead: {
		models.RoleAdmin:     allowAny,
		models.RoleProfessor: readAsProfessor,
		models.RoleStudent:   readAsStudent,
	},
	OpList: {
		models.RoleAdmin:     listAsAdmin,
		models.RoleProfessor: listAsProfessor,
		models.RoleStudent:   listAsStudent,
	},
	OpUpdate: {
		models.RoleAdmin:     updateAsAdmin,
		models.RoleProfessor: updateAsProfessor,
	},
	OpDelete: {
		models.RoleAdmin:   allowAny,
		models.RoleStudent: deleteAsStudent,
	},
}

// Decide evaluates the matrix for one operation and principal.
func (p *AccessPolicy) Decide(ctx context.Context, principal models.Principal, op Operation, in PolicyInput) (*PolicyDecision, error) {
	rules, ok := policyMatrix[op]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized")
	}
	rule, ok := rules[principal.Role]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized")
	}
	return rule(ctx, p, principal, in)
}

func allowAny(ctx context.Context, p *AccessPolicy, principal models.Principal, in PolicyInput) (*PolicyDecision, error) {
	return &PolicyDecision{Filter: in.Filter}, nil
}

func createAsAdmin(ctx context.Context, p *AccessPolicy, principal models.Principal, in PolicyInput) (*PolicyDecision, error) {
	// No implicit self-assignment for admins.
	if in.PayloadStudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the admin must provide the student id")
	}
	return &PolicyDecision{StudentID: in.PayloadStudentID}, nil
}

func createAsStudent(ctx context.Context, p *AccessPolicy, principal models.Principal, in PolicyInput) (*PolicyDecision, error) {
	if in.PayloadStudentID != "" && in.PayloadStudentID != principal.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized")
	}
	return &PolicyDecision{StudentID: principal.ID}, nil
}

func readAsProfessor(ctx context.Context, p *AccessPolicy, principal models.Principal, in PolicyInput) (*PolicyDecision, error) {
	if in.Target == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized")
	}
	if err := p.requireTeaches(ctx, principal.ID, in.Target.CourseID); err != nil {
		return nil, err
	}
	return &PolicyDecision{}, nil
}

func readAsStudent(ctx context.Context, p *AccessPolicy, principal models.Principal, in PolicyInput) (*PolicyDecision, error) {
	if in.Target == nil || in.Target.StudentID != principal.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized")
	}
	return &PolicyDecision{}, nil
}

func listAsAdmin(ctx context.Context, p *AccessPolicy, principal models.Principal, in PolicyInput) (*PolicyDecision, error) {
	return &PolicyDecision{Filter: in.Filter}, nil
}

func listAsProfessor(ctx context.Context, p *AccessPolicy, principal models.Principal, in PolicyInput) (*PolicyDecision, error) {
	courses, err := p.catalog.GetCoursesForProfessor(ctx, principal.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve taught courses")
	}
	filter := in.Filter
	// Non-nil even when empty so that a professor with no courses sees nothing.
	filter.CourseIDs = make([]string, 0, len(courses))
	for _, course := range courses {
		filter.CourseIDs = append(filter.CourseIDs, course.ID)
	}
	return &PolicyDecision{Filter: filter}, nil
}

func listAsStudent(ctx context.Context, p *AccessPolicy, principal models.Principal, in PolicyInput) (*PolicyDecision, error) {
	filter := in.Filter
	filter.StudentID = principal.ID
	return &PolicyDecision{Filter: filter}, nil
}

func updateAsAdmin(ctx context.Context, p *AccessPolicy, principal models.Principal, in PolicyInput) (*PolicyDecision, error) {
	// For admins a malformed payload is a client-input error, not a
	// permission boundary.
	if !payloadIsExactlyGrades(in.PayloadKeys) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only grades can be updated")
	}
	return &PolicyDecision{}, nil
}

func updateAsProfessor(ctx context.Context, p *AccessPolicy, principal models.Principal, in PolicyInput) (*PolicyDecision, error) {
	if !payloadIsExactlyGrades(in.PayloadKeys) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only grades can be modified")
	}
	if in.Target == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized")
	}
	if err := p.requireTeaches(ctx, principal.ID, in.Target.CourseID); err != nil {
		return nil, err
	}
	return &PolicyDecision{}, nil
}

func deleteAsStudent(ctx context.Context, p *AccessPolicy, principal models.Principal, in PolicyInput) (*PolicyDecision, error) {
	if in.Target == nil || in.Target.StudentID != principal.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized")
	}
	return &PolicyDecision{}, nil
}

func (p *AccessPolicy) requireTeaches(ctx context.Context, professorID, courseID string) error {
	courses, err := p.catalog.GetCoursesForProfessor(ctx, professorID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve taught courses")
	}
	for _, course := range courses {
		if course.ID == courseID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not authorized")
}

func payloadIsExactlyGrades(keys []string) bool {
	return len(keys) == 1 && keys[0] == "grades"
}
