package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusphere/enrollment-api/internal/models"
	"github.com/edusphere/enrollment-api/internal/service"
	appErrors "github.com/edusphere/enrollment-api/pkg/errors"
	"github.com/edusphere/enrollment-api/pkg/response"
)

// EnrollmentHandler exposes enrollment endpoints. It resolves the effective
// target and filter through the access policy before touching the service.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	policy      *service.AccessPolicy
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, policy *service.AccessPolicy) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, policy: policy}
}

// Create godoc
// @Summary Create enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	principal := principalFromContext(c)

	var req service.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	decision, err := h.policy.Decide(c.Request.Context(), principal, service.OpCreate, service.PolicyInput{PayloadStudentID: req.StudentID})
	if err != nil {
		response.Error(c, err)
		return
	}
	req.StudentID = decision.StudentID

	enrollment, err := h.enrollments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Get godoc
// @Summary Get enrollment by id
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	principal := principalFromContext(c)

	enrollment, err := h.enrollments.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if enrollment == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found"))
		return
	}

	if _, err := h.policy.Decide(c.Request.Context(), principal, service.OpRead, service.PolicyInput{Target: enrollment}); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, enrollment)
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param semester query string false "Filter by semester"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	principal := principalFromContext(c)

	filter := models.EnrollmentFilter{
		StudentID: c.Query("studentId"),
		CourseID:  c.Query("courseId"),
		Semester:  c.Query("semester"),
	}

	decision, err := h.policy.Decide(c.Request.Context(), principal, service.OpList, service.PolicyInput{Filter: filter})
	if err != nil {
		response.Error(c, err)
		return
	}

	enrollments, err := h.enrollments.List(c.Request.Context(), decision.Filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments)
}

// Update godoc
// @Summary Update enrollment grades
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.UpdateGradesRequest true "Grades payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [put]
func (h *EnrollmentHandler) Update(c *gin.Context) {
	principal := principalFromContext(c)

	// The raw key set matters: the policy rejects any payload that is not
	// exactly {"grades": ...}.
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}

	enrollment, err := h.enrollments.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if enrollment == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found"))
		return
	}

	if _, err := h.policy.Decide(c.Request.Context(), principal, service.OpUpdate, service.PolicyInput{Target: enrollment, PayloadKeys: keys}); err != nil {
		response.Error(c, err)
		return
	}

	var req service.UpdateGradesRequest
	if rawGrades, ok := raw["grades"]; ok {
		var grades []float64
		if err := json.Unmarshal(rawGrades, &grades); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "grades must be an array of numbers"))
			return
		}
		req.Grades = &grades
	}

	updated, err := h.enrollments.UpdateGrades(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated)
}

// Delete godoc
// @Summary Deactivate enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	principal := principalFromContext(c)

	// Ownership checks need the active record; admins pass with a nil target.
	target, err := h.enrollments.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	if _, err := h.policy.Decide(c.Request.Context(), principal, service.OpDelete, service.PolicyInput{Target: target}); err != nil {
		response.Error(c, err)
		return
	}

	if _, err := h.enrollments.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, nil)
}
