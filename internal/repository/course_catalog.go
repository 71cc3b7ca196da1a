package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/edusphere/enrollment-api/internal/models"
	"github.com/edusphere/enrollment-api/pkg/config"
	appErrors "github.com/edusphere/enrollment-api/pkg/errors"
)

// CourseCatalogRepository talks to the remote course catalog service, which
// owns evaluation-weight configuration and professor course assignments.
type CourseCatalogRepository struct {
	baseURL string
	client  *http.Client
}

// NewCourseCatalogRepository constructs the catalog client.
func NewCourseCatalogRepository(cfg config.CatalogConfig) *CourseCatalogRepository {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CourseCatalogRepository{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type courseEnvelope struct {
	Data struct {
		ID                string    `json:"id"`
		EvaluationWeights []float64 `json:"evaluation_weights"`
	} `json:"data"`
}

type courseListEnvelope struct {
	Data []models.CourseRef `json:"data"`
}

// GetEvaluationWeights fetches the per-evaluation weights configured for a
// course. Weights are fetched fresh on every call; they are never cached.
func (r *CourseCatalogRepository) GetEvaluationWeights(ctx context.Context, courseID string) ([]float64, error) {
	endpoint := fmt.Sprintf("%s/api/courses/%s", r.baseURL, url.PathEscape(courseID))

	var payload courseEnvelope
	if err := r.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	if len(payload.Data.EvaluationWeights) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidWeights, "course has no evaluation weights configured")
	}
	return payload.Data.EvaluationWeights, nil
}

// GetCoursesForProfessor lists the courses taught by a professor. An empty
// slice means the professor currently teaches nothing.
func (r *CourseCatalogRepository) GetCoursesForProfessor(ctx context.Context, professorID string) ([]models.CourseRef, error) {
	endpoint := fmt.Sprintf("%s/api/courses?professor=%s", r.baseURL, url.QueryEscape(professorID))

	var payload courseListEnvelope
	if err := r.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

func (r *CourseCatalogRepository) getJSON(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "could not build course catalog request")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "course catalog unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("course catalog returned status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "could not decode course catalog response")
	}
	return nil
}
