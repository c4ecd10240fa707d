package dto

import (
	"time"

	"github.com/noah-isme/attendance-insights-api/internal/models"
)

// ExportRequest captures the POST /exports payload.
type ExportRequest struct {
	Dataset models.ExportDataset  `json:"dataset" validate:"required"`
	Format  models.ExportFormat   `json:"format" validate:"required,oneof=csv pdf"`
	Filters models.FilterSnapshot `json:"filters"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID         string               `json:"id"`
	Dataset    models.ExportDataset `json:"dataset"`
	Format     models.ExportFormat  `json:"format"`
	Status     models.ExportStatus  `json:"status"`
	Progress   int                  `json:"progress"`
	ResultURL  *string              `json:"resultUrl,omitempty"`
	Error      *string              `json:"error,omitempty"`
	FinishedAt *time.Time           `json:"finishedAt,omitempty"`
}
