package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-insights-api/internal/models"
	appErrors "github.com/noah-isme/attendance-insights-api/pkg/errors"
	"github.com/noah-isme/attendance-insights-api/pkg/export"
	"github.com/noah-isme/attendance-insights-api/pkg/storage"
)

// recordColumns is the projection of the raw records export.
var recordColumns = []string{
	"attendance_id", "student_id", "session_date", "attendance_status", "minutes_late", "delivery_mode",
	"course_code", "course_title", "school", "programme_name", "instructor",
}

type datasetProvider interface {
	KPIs(ctx context.Context, filters models.DashboardFilters) (models.KPISummary, bool, error)
	Schools(ctx context.Context, filters models.DashboardFilters) ([]models.SchoolAttendance, bool, error)
	Programmes(ctx context.Context, filters models.DashboardFilters) ([]models.ProgrammeAttendance, bool, error)
	Weekly(ctx context.Context, filters models.DashboardFilters) ([]models.WeeklyTrend, bool, error)
	Hotspots(ctx context.Context, filters models.DashboardFilters) ([]models.ModuleHotspot, bool, error)
	AtRisk(ctx context.Context, filters models.DashboardFilters) ([]models.AtRiskStudent, bool, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	MaxRows   int
}

// RenderedExport is an encoded dataset ready to be sent or stored.
type RenderedExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService builds export datasets, renders them and persists rendered files.
type ExportService struct {
	rows      rowSource
	datasets  datasetProvider
	storage   fileStorage
	signer    *storage.SignedURLSigner
	renderers map[models.ExportFormat]export.Renderer
	logger    *zap.Logger
	now       func() time.Time
	cfg       ExportConfig
}

// NewExportService constructs an ExportService. storage and signer may be nil when
// only synchronous downloads are served.
func NewExportService(rows rowSource, datasets datasetProvider, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 200000
	}
	return &ExportService{
		rows:     rows,
		datasets: datasets,
		storage:  store,
		signer:   signer,
		renderers: map[models.ExportFormat]export.Renderer{
			models.ExportFormatCSV: export.NewCSVExporter(),
			models.ExportFormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
		now:    time.Now,
		cfg:    cfg,
	}
}

// Render builds the dataset for filters and encodes it in format.
func (s *ExportService) Render(ctx context.Context, dataset models.ExportDataset, format models.ExportFormat, filters models.DashboardFilters) (*RenderedExport, error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	data, err := s.buildDataset(ctx, dataset, filters)
	if err != nil {
		return nil, err
	}
	if len(data.Rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "No data to export")
	}
	body, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &RenderedExport{
		Filename:    fmt.Sprintf("attendance_%s_%s.%s", strings.ReplaceAll(string(dataset), "-", "_"), s.now().UTC().Format(models.DateLayout), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

// Generate renders the dataset of a job, stores the file and signs a download URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	if s.storage == nil || s.signer == nil {
		return nil, fmt.Errorf("export storage not configured")
	}
	filters, err := job.Filters.Filters()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export filters")
	}
	rendered, err := s.Render(ctx, job.Dataset, job.Format, filters)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("%s_%s", sanitizeFilename(job.ID), rendered.Filename)
	relPath, err := s.storage.Save(filename, rendered.Body)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.DownloadClaims, error) {
	if s.signer == nil {
		return storage.DownloadClaims{}, storage.ErrTokenFormat
	}
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// ContentType reports the MIME type for format.
func (s *ExportService) ContentType(format models.ExportFormat) string {
	if r, ok := s.renderers[format]; ok {
		return r.ContentType()
	}
	return "application/octet-stream"
}

func (s *ExportService) buildDataset(ctx context.Context, dataset models.ExportDataset, filters models.DashboardFilters) (export.Dataset, error) {
	switch dataset {
	case models.ExportRecords:
		return s.buildRecordsDataset(ctx, filters)
	case models.ExportSummary:
		return s.buildSummaryDataset(ctx, filters)
	case models.ExportSchools:
		schools, _, err := s.datasets.Schools(ctx, filters)
		if err != nil {
			return export.Dataset{}, err
		}
		data := export.Dataset{Title: "Attendance by School", Headers: []string{"School", "Present", "Late", "Excused", "Absent", "Total", "Absence Rate"}}
		for _, row := range schools {
			data.Rows = append(data.Rows, []string{row.School, itoa(row.Present), itoa(row.Late), itoa(row.Excused), itoa(row.Absent), itoa(row.Total), percent(row.AbsenceRate)})
		}
		return data, nil
	case models.ExportProgrammes:
		programmes, _, err := s.datasets.Programmes(ctx, filters)
		if err != nil {
			return export.Dataset{}, err
		}
		data := export.Dataset{Title: "Attendance by Programme", Headers: []string{"Programme", "Attendance Rate", "Total"}}
		for _, row := range programmes {
			data.Rows = append(data.Rows, []string{row.ProgrammeName, percent(row.Rate), itoa(row.Total)})
		}
		return data, nil
	case models.ExportWeekly:
		weeks, _, err := s.datasets.Weekly(ctx, filters)
		if err != nil {
			return export.Dataset{}, err
		}
		data := export.Dataset{Title: "Weekly Attendance Trend", Headers: []string{"Week Start", "Attendance Rate", "Total"}}
		for _, row := range weeks {
			data.Rows = append(data.Rows, []string{row.WeekStart, percent(row.AttendanceRate), itoa(row.Total)})
		}
		return data, nil
	case models.ExportHotspots:
		hotspots, _, err := s.datasets.Hotspots(ctx, filters)
		if err != nil {
			return export.Dataset{}, err
		}
		data := export.Dataset{Title: "Module Hotspots", Headers: []string{"Course Code", "Course Title", "School", "Programme Level", "Attendance Rate", "Absence Rate", "Lateness Rate", "Records"}}
		for _, row := range hotspots {
			data.Rows = append(data.Rows, []string{row.CourseCode, row.CourseTitle, row.School, row.ProgrammeLevel,
				percent(row.AttendanceRate), percent(row.AbsenceRate), percent(row.LatenessRate), itoa(row.TotalRecords)})
		}
		return data, nil
	case models.ExportAtRisk:
		students, _, err := s.datasets.AtRisk(ctx, filters)
		if err != nil {
			return export.Dataset{}, err
		}
		data := export.Dataset{Title: "At-Risk Students", Headers: []string{"Student ID", "Student Number", "Name", "School", "Programme", "Attendance Rate", "Recent Absences", "Late Count", "Last Seen"}}
		for _, row := range students {
			name := strings.TrimSpace(row.FirstName + " " + row.LastName)
			lastSeen := ""
			if row.LastSeenDate != nil {
				lastSeen = *row.LastSeenDate
			}
			data.Rows = append(data.Rows, []string{row.StudentID, row.StudentNumber, name, row.School, row.ProgrammeName,
				percent(row.AttendanceRate), itoa(row.RecentAbsences), itoa(row.LateCount), lastSeen})
		}
		return data, nil
	}
	return export.Dataset{}, appErrors.Clone(appErrors.ErrValidation, "unsupported export dataset")
}

func (s *ExportService) buildRecordsDataset(ctx context.Context, filters models.DashboardFilters) (export.Dataset, error) {
	total, err := s.rows.Count(ctx, filters)
	if err != nil {
		return export.Dataset{}, err
	}
	if total > s.cfg.MaxRows {
		return export.Dataset{}, appErrors.Clone(appErrors.ErrTooLarge, fmt.Sprintf("%d records match; narrow the filters to at most %d", total, s.cfg.MaxRows))
	}

	records, err := s.rows.FetchAll(ctx, filters, recordColumns)
	if err != nil {
		return export.Dataset{}, err
	}
	data := export.Dataset{
		Title: "Attendance Records",
		Headers: []string{"Attendance_ID", "Student_ID", "Session_Date", "Status", "Minutes_Late", "Delivery_Mode",
			"Course_Code", "Course_Title", "Programme_Name", "School", "Instructor"},
		Rows: make([][]string, 0, len(records)),
	}
	for _, r := range records {
		data.Rows = append(data.Rows, []string{
			strconv.FormatInt(r.AttendanceID, 10),
			r.StudentID,
			r.SessionDate.Format(models.DateLayout),
			string(r.Status),
			itoa(r.MinutesLate),
			string(r.DeliveryMode),
			r.CourseCode,
			r.CourseTitle,
			r.ProgrammeName,
			r.School,
			r.Instructor,
		})
	}
	return data, nil
}

func (s *ExportService) buildSummaryDataset(ctx context.Context, filters models.DashboardFilters) (export.Dataset, error) {
	kpis, _, err := s.datasets.KPIs(ctx, filters)
	if err != nil {
		return export.Dataset{}, err
	}
	schools, _, err := s.datasets.Schools(ctx, filters)
	if err != nil {
		return export.Dataset{}, err
	}
	programmes, _, err := s.datasets.Programmes(ctx, filters)
	if err != nil {
		return export.Dataset{}, err
	}

	data := export.Dataset{Title: "Attendance Summary", Headers: []string{"Metric", "Value"}}
	add := func(metric, value string) {
		data.Rows = append(data.Rows, []string{metric, value})
	}
	add("Total Students", itoa(kpis.TotalStudents))
	add("Total Attendance Records", itoa(kpis.TotalRecords))
	add("Overall Attendance Rate", percent(kpis.AttendanceRate))
	add("Overall Absence Rate", percent(kpis.AbsenceRate))
	add("Overall Lateness Rate", percent(kpis.LatenessRate))
	add("At-Risk Students", itoa(kpis.AtRiskStudents))

	for _, status := range models.Statuses {
		for _, school := range schools {
			var count int
			switch status {
			case models.StatusPresent:
				count = school.Present
			case models.StatusLate:
				count = school.Late
			case models.StatusExcused:
				count = school.Excused
			case models.StatusAbsent:
				count = school.Absent
			}
			add(fmt.Sprintf("%s - %s", school.School, status.Label()), itoa(count))
		}
	}
	for _, p := range programmes {
		add(p.ProgrammeName+" - Rate", percent(p.Rate))
	}
	return data, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func itoa(v int) string {
	return strconv.Itoa(v)
}

func percent(v int) string {
	return strconv.Itoa(v) + "%"
}
