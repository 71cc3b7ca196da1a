package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusphere/enrollment-api/internal/middleware"
	"github.com/edusphere/enrollment-api/internal/models"
	"github.com/edusphere/enrollment-api/internal/service"
)

type stubEnrollmentStore struct {
	enrollments map[string]models.Enrollment
	created     *models.Enrollment
	lastFilter  models.EnrollmentFilter
}

func (s *stubEnrollmentStore) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if s.enrollments == nil {
		s.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "new-enroll"
	}
	s.enrollments[enrollment.ID] = *enrollment
	s.created = enrollment
	return nil
}

func (s *stubEnrollmentStore) FindActiveByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := s.enrollments[id]; ok && e.Active {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubEnrollmentStore) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := s.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubEnrollmentStore) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	s.lastFilter = filter
	var list []models.Enrollment
	for _, e := range s.enrollments {
		if e.Active {
			list = append(list, e)
		}
	}
	return list, nil
}

func (s *stubEnrollmentStore) Save(ctx context.Context, enrollment *models.Enrollment) error {
	s.enrollments[enrollment.ID] = *enrollment
	return nil
}

type stubCourseCatalog struct {
	weights map[string][]float64
	courses []models.CourseRef
}

func (s *stubCourseCatalog) GetEvaluationWeights(ctx context.Context, courseID string) ([]float64, error) {
	return s.weights[courseID], nil
}

func (s *stubCourseCatalog) GetCoursesForProfessor(ctx context.Context, professorID string) ([]models.CourseRef, error) {
	return s.courses, nil
}

func newTestRouter(store *stubEnrollmentStore, catalog *stubCourseCatalog, principal models.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)

	svc := service.NewEnrollmentService(store, catalog, nil, nil)
	policy := service.NewAccessPolicy(catalog)
	h := NewEnrollmentHandler(svc, policy)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextPrincipalKey, principal)
		c.Next()
	})
	r.POST("/enrollments", h.Create)
	r.GET("/enrollments", h.List)
	r.GET("/enrollments/:id", h.Get)
	r.PUT("/enrollments/:id", h.Update)
	r.DELETE("/enrollments/:id", h.Delete)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) (bool, map[string]interface{}, string) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	var data map[string]interface{}
	if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		require.NoError(t, json.Unmarshal(envelope.Data, &data))
	}
	return envelope.Success, data, envelope.Error
}

func TestEnrollmentHandlerCreateAsAdmin(t *testing.T) {
	store := &stubEnrollmentStore{}
	catalog := &stubCourseCatalog{weights: map[string][]float64{"mat2": {50, 50}}}
	r := newTestRouter(store, catalog, models.Principal{ID: "adm1", Role: models.RoleAdmin})

	w := doJSON(t, r, http.MethodPost, "/enrollments", gin.H{
		"student_id": "stu1", "course_id": "mat2", "semester": "202420", "grades": []float64{5, 4},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	success, data, _ := decodeEnvelope(t, w)
	assert.True(t, success)
	assert.Equal(t, "stu1", data["student_id"])
	assert.InDelta(t, 4.5, data["final_grade"], 1e-9)
	assert.Equal(t, true, data["active"])
}

func TestEnrollmentHandlerCreateAdminWithoutStudentID(t *testing.T) {
	store := &stubEnrollmentStore{}
	catalog := &stubCourseCatalog{weights: map[string][]float64{"mat1": {100}}}
	r := newTestRouter(store, catalog, models.Principal{ID: "adm1", Role: models.RoleAdmin})

	w := doJSON(t, r, http.MethodPost, "/enrollments", gin.H{"course_id": "mat1", "semester": "202410"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, store.created)
}

func TestEnrollmentHandlerCreateStudentForAnotherStudent(t *testing.T) {
	store := &stubEnrollmentStore{}
	catalog := &stubCourseCatalog{weights: map[string][]float64{"mat1": {100}}}
	r := newTestRouter(store, catalog, models.Principal{ID: "stu1", Role: models.RoleStudent})

	w := doJSON(t, r, http.MethodPost, "/enrollments", gin.H{
		"student_id": "stu2", "course_id": "mat1", "semester": "202410",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, store.created)
}

func TestEnrollmentHandlerCreateStudentSelfAssigns(t *testing.T) {
	store := &stubEnrollmentStore{}
	catalog := &stubCourseCatalog{weights: map[string][]float64{"mat1": {100}}}
	r := newTestRouter(store, catalog, models.Principal{ID: "stu1", Role: models.RoleStudent})

	w := doJSON(t, r, http.MethodPost, "/enrollments", gin.H{"course_id": "mat1", "semester": "202410"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, store.created)
	assert.Equal(t, "stu1", store.created.StudentID)
}

func TestEnrollmentHandlerGetNotFound(t *testing.T) {
	r := newTestRouter(&stubEnrollmentStore{}, &stubCourseCatalog{}, models.Principal{ID: "adm1", Role: models.RoleAdmin})

	w := doJSON(t, r, http.MethodGet, "/enrollments/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	success, _, msg := decodeEnvelope(t, w)
	assert.False(t, success)
	assert.Equal(t, "enrollment not found", msg)
}

func TestEnrollmentHandlerGetOwnershipEnforced(t *testing.T) {
	store := &stubEnrollmentStore{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "stu1", CourseID: "mat1", Active: true},
	}}
	r := newTestRouter(store, &stubCourseCatalog{}, models.Principal{ID: "stu2", Role: models.RoleStudent})

	w := doJSON(t, r, http.MethodGet, "/enrollments/e1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestEnrollmentHandlerListStudentScopedToSelf(t *testing.T) {
	store := &stubEnrollmentStore{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "stu1", Active: true},
	}}
	r := newTestRouter(store, &stubCourseCatalog{}, models.Principal{ID: "stu1", Role: models.RoleStudent})

	w := doJSON(t, r, http.MethodGet, "/enrollments?studentId=stu2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu1", store.lastFilter.StudentID)
}

func TestEnrollmentHandlerListProfessorScopedToCourses(t *testing.T) {
	store := &stubEnrollmentStore{}
	catalog := &stubCourseCatalog{courses: []models.CourseRef{{ID: "mat1"}}}
	r := newTestRouter(store, catalog, models.Principal{ID: "prof1", Role: models.RoleProfessor})

	w := doJSON(t, r, http.MethodGet, "/enrollments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"mat1"}, store.lastFilter.CourseIDs)
}

func TestEnrollmentHandlerUpdateRecomputesFinalGrade(t *testing.T) {
	store := &stubEnrollmentStore{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "stu1", CourseID: "mat3", Grades: []float64{3, 3, 3}, FinalGrade: 3, Active: true},
	}}
	catalog := &stubCourseCatalog{weights: map[string][]float64{"mat3": {30, 30, 40}}}
	r := newTestRouter(store, catalog, models.Principal{ID: "adm1", Role: models.RoleAdmin})

	w := doJSON(t, r, http.MethodPut, "/enrollments/e1", gin.H{"grades": []float64{5, 5, 5}})
	require.Equal(t, http.StatusOK, w.Code)
	_, data, _ := decodeEnvelope(t, w)
	assert.InDelta(t, 5.0, data["final_grade"], 1e-9)
}

func TestEnrollmentHandlerUpdateRejectsExtraFields(t *testing.T) {
	store := &stubEnrollmentStore{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", CourseID: "mat1", Grades: []float64{3}, Active: true},
	}}
	catalog := &stubCourseCatalog{
		weights: map[string][]float64{"mat1": {100}},
		courses: []models.CourseRef{{ID: "mat1"}},
	}

	r := newTestRouter(store, catalog, models.Principal{ID: "adm1", Role: models.RoleAdmin})
	w := doJSON(t, r, http.MethodPut, "/enrollments/e1", gin.H{"grades": []float64{4}, "semester": "202430"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = newTestRouter(store, catalog, models.Principal{ID: "prof1", Role: models.RoleProfessor})
	w = doJSON(t, r, http.MethodPut, "/enrollments/e1", gin.H{"grades": []float64{4}, "semester": "202430"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestEnrollmentHandlerUpdateRejectsNonNumericGrades(t *testing.T) {
	store := &stubEnrollmentStore{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", CourseID: "mat1", Grades: []float64{3}, Active: true},
	}}
	catalog := &stubCourseCatalog{weights: map[string][]float64{"mat1": {100}}}
	r := newTestRouter(store, catalog, models.Principal{ID: "adm1", Role: models.RoleAdmin})

	w := doJSON(t, r, http.MethodPut, "/enrollments/e1", gin.H{"grades": []string{"five"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerUpdateNotFound(t *testing.T) {
	r := newTestRouter(&stubEnrollmentStore{}, &stubCourseCatalog{}, models.Principal{ID: "adm1", Role: models.RoleAdmin})

	w := doJSON(t, r, http.MethodPut, "/enrollments/missing", gin.H{"grades": []float64{4}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnrollmentHandlerDeleteThenGetReturnsNotFound(t *testing.T) {
	store := &stubEnrollmentStore{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "stu1", CourseID: "mat1", Active: true},
	}}
	r := newTestRouter(store, &stubCourseCatalog{}, models.Principal{ID: "adm1", Role: models.RoleAdmin})

	w := doJSON(t, r, http.MethodDelete, "/enrollments/e1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	success, _, _ := decodeEnvelope(t, w)
	assert.True(t, success)

	w = doJSON(t, r, http.MethodGet, "/enrollments/e1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnrollmentHandlerDeleteStudentOwnershipEnforced(t *testing.T) {
	store := &stubEnrollmentStore{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "stu1", CourseID: "mat1", Active: true},
	}}
	r := newTestRouter(store, &stubCourseCatalog{}, models.Principal{ID: "stu2", Role: models.RoleStudent})

	w := doJSON(t, r, http.MethodDelete, "/enrollments/e1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, store.enrollments["e1"].Active)
}

func TestEnrollmentHandlerDeleteMissingAsAdmin(t *testing.T) {
	r := newTestRouter(&stubEnrollmentStore{}, &stubCourseCatalog{}, models.Principal{ID: "adm1", Role: models.RoleAdmin})

	w := doJSON(t, r, http.MethodDelete, "/enrollments/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
