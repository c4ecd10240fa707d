package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportDataset enumerates exportable datasets.
type ExportDataset string

const (
	ExportRecords    ExportDataset = "records"
	ExportSummary    ExportDataset = "summary"
	ExportSchools    ExportDataset = "schools"
	ExportProgrammes ExportDataset = "programmes"
	ExportWeekly     ExportDataset = "weekly"
	ExportHotspots   ExportDataset = "hotspots"
	ExportAtRisk     ExportDataset = "at-risk"
)

// Valid reports whether d is a known dataset.
func (d ExportDataset) Valid() bool {
	switch d {
	case ExportRecords, ExportSummary, ExportSchools, ExportProgrammes, ExportWeekly, ExportHotspots, ExportAtRisk:
		return true
	}
	return false
}

// ExportFormat enumerates supported export encodings.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob is persisted metadata for an asynchronous export.
type ExportJob struct {
	ID           string        `db:"id" json:"id"`
	Dataset      ExportDataset `db:"dataset" json:"dataset"`
	Format       ExportFormat  `db:"format" json:"format"`
	Filters      ExportFilters `db:"filters" json:"filters"`
	Status       ExportStatus  `db:"status" json:"status"`
	Progress     int           `db:"progress" json:"progress"`
	ResultURL    *string       `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string        `db:"created_by" json:"created_by"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time    `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string       `db:"error_message" json:"error_message,omitempty"`
}

// ExportFilters persists the dashboard filters of a job as JSONB.
type ExportFilters struct {
	FilterSnapshot
}

// Value marshals the filters for persistence.
func (f ExportFilters) Value() (driver.Value, error) {
	data, err := json.Marshal(f.FilterSnapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal export filters: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads.
func (f *ExportFilters) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*f = ExportFilters{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ExportFilters", value)
	}
	if len(data) == 0 {
		*f = ExportFilters{}
		return nil
	}
	if err := json.Unmarshal(data, &f.FilterSnapshot); err != nil {
		return fmt.Errorf("unmarshal export filters: %w", err)
	}
	return nil
}

// ExportJobUpdate carries a partial status change.
type ExportJobUpdate struct {
	Status       *ExportStatus
	Progress     *int
	ResultURL    *string
	FinishedAt   *time.Time
	ErrorMessage *string
}
