package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-insights-api/internal/dto"
	"github.com/noah-isme/attendance-insights-api/internal/middleware"
	"github.com/noah-isme/attendance-insights-api/internal/models"
	"github.com/noah-isme/attendance-insights-api/internal/service"
	appErrors "github.com/noah-isme/attendance-insights-api/pkg/errors"
)

type fakeRenderer struct {
	dataset models.ExportDataset
	format  models.ExportFormat
	filters models.DashboardFilters
	out     *service.RenderedExport
	err     error
}

func (f *fakeRenderer) Render(_ context.Context, dataset models.ExportDataset, format models.ExportFormat, filters models.DashboardFilters) (*service.RenderedExport, error) {
	f.dataset = dataset
	f.format = format
	f.filters = filters
	return f.out, f.err
}

type fakeExportJobs struct {
	created   dto.ExportRequest
	actor     string
	createErr error
	status    *dto.ExportStatusResponse
	statusErr error
	download  *service.ExportDownload
}

func (f *fakeExportJobs) CreateJob(_ context.Context, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error) {
	f.created = req
	f.actor = actorID
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &dto.ExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued}, nil
}

func (f *fakeExportJobs) GetStatus(_ context.Context, id string, actorID string) (*dto.ExportStatusResponse, error) {
	f.actor = actorID
	return f.status, f.statusErr
}

func (f *fakeExportJobs) ResolveDownload(context.Context, string) (*service.ExportDownload, error) {
	if f.download == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	return f.download, nil
}

func asUser(c *gin.Context, id string) {
	claims := &models.JWTClaims{}
	claims.Subject = id
	c.Set(middleware.ContextUserKey, claims)
}

func TestExportHandlerDownloadRendersAttachment(t *testing.T) {
	renderer := &fakeRenderer{out: &service.RenderedExport{
		Filename:    "attendance_schools_2024-10-08.csv",
		ContentType: "text/csv; charset=utf-8",
		Body:        []byte("School,Present\nBusiness,8\n"),
	}}
	handler := NewExportHandler(renderer, nil, nil)

	c, rec := newTestContext(http.MethodGet, "/exports/schools?school=Business")
	c.Params = gin.Params{{Key: "dataset", Value: "schools"}}
	handler.Download(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="attendance_schools_2024-10-08.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "School,Present\nBusiness,8\n", rec.Body.String())
	assert.Equal(t, models.ExportSchools, renderer.dataset)
	assert.Equal(t, models.ExportFormatCSV, renderer.format)
	require.NotNil(t, renderer.filters.School)
}

func TestExportHandlerDownloadErrors(t *testing.T) {
	handler := NewExportHandler(&fakeRenderer{err: appErrors.Clone(appErrors.ErrNotFound, "No data to export")}, nil, nil)

	c, rec := newTestContext(http.MethodGet, "/exports/hotspots?format=PDF")
	c.Params = gin.Params{{Key: "dataset", Value: "hotspots"}}
	handler.Download(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No data to export")
}

func TestExportHandlerCreateJob(t *testing.T) {
	jobs := &fakeExportJobs{}
	handler := NewExportHandler(nil, jobs, nil)

	c, rec := newJSONContext(http.MethodPost, "/exports", `{"dataset":"summary","format":"pdf","filters":{"school":"Business"}}`)
	asUser(c, "user-1")
	handler.CreateJob(c)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "user-1", jobs.actor)
	assert.Equal(t, models.ExportSummary, jobs.created.Dataset)
	assert.Equal(t, "Business", *jobs.created.Filters.School)
}

func TestExportHandlerCreateJobRequiresUser(t *testing.T) {
	handler := NewExportHandler(nil, &fakeExportJobs{}, nil)
	c, rec := newJSONContext(http.MethodPost, "/exports", `{"dataset":"summary","format":"csv"}`)
	handler.CreateJob(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExportHandlerJobsDisabled(t *testing.T) {
	handler := NewExportHandler(nil, nil, nil)
	c, rec := newTestContext(http.MethodGet, "/exports/jobs/job-1")
	asUser(c, "user-1")
	handler.JobStatus(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportHandlerJobStatusForbidden(t *testing.T) {
	handler := NewExportHandler(nil, &fakeExportJobs{statusErr: appErrors.ErrForbidden}, nil)
	c, rec := newTestContext(http.MethodGet, "/exports/jobs/job-1")
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	asUser(c, "user-2")
	handler.JobStatus(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExportHandlerDownloadJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job-1_attendance_summary.csv")
	require.NoError(t, os.WriteFile(path, []byte("Metric,Value\n"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	handler := NewExportHandler(nil, &fakeExportJobs{download: &service.ExportDownload{
		File:        file,
		Filename:    "job-1_attendance_summary.csv",
		ContentType: "text/csv; charset=utf-8",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}, nil)

	c, rec := newTestContext(http.MethodGet, "/exports/download/token")
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	handler.DownloadJob(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Metric,Value\n", rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestExportHandlerDownloadJobRejectsToken(t *testing.T) {
	handler := NewExportHandler(nil, &fakeExportJobs{}, nil)
	c, rec := newTestContext(http.MethodGet, "/exports/download/bad")
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	handler.DownloadJob(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
