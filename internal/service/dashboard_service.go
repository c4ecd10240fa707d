package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-insights-api/internal/analytics"
	"github.com/noah-isme/attendance-insights-api/internal/models"
)

type rowSource interface {
	FetchAll(ctx context.Context, filters models.DashboardFilters, columns []string) ([]models.AttendanceRecord, error)
	Count(ctx context.Context, filters models.DashboardFilters) (int, error)
}

type studentDirectory interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.StudentProfile, error)
}

// Column projections per dataset; attendance_status is always added by the repository.
var (
	kpiColumns       = []string{"student_id", "session_date"}
	schoolColumns    = []string{"school"}
	programmeColumns = []string{"programme_name"}
	weeklyColumns    = []string{"week_start"}
	yearlyColumns    = []string{"session_date"}
	deliveryColumns  = []string{"delivery_mode"}
	hotspotColumns   = []string{"course_code", "course_title", "school", "programme_level"}
	atRiskColumns    = []string{"student_id", "session_date"}
	insightColumns   = []string{"school", "programme_name", "delivery_mode"}
)

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL          time.Duration
	HotspotMinSample  int
	AtRiskDetailLimit int
	Risk              analytics.RiskPolicy
	Insights          analytics.InsightThresholds
}

// DashboardService fetches filtered attendance rows and derives the dashboard
// datasets from them, caching each dataset per filter set.
type DashboardService struct {
	rows     rowSource
	students studentDirectory
	cache    *CacheService
	logger   *zap.Logger
	now      func() time.Time
	cfg      DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Rows     rowSource
	Students studentDirectory
	Cache    *CacheService
	Logger   *zap.Logger
	Config   DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.HotspotMinSample <= 0 {
		cfg.HotspotMinSample = analytics.DefaultMinSampleSize
	}
	if cfg.AtRiskDetailLimit <= 0 {
		cfg.AtRiskDetailLimit = 100
	}
	if cfg.Insights == (analytics.InsightThresholds{}) {
		cfg.Insights = analytics.DefaultInsightThresholds()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		rows:     params.Rows,
		students: params.Students,
		cache:    params.Cache,
		logger:   logger,
		now:      time.Now,
		cfg:      cfg,
	}
}

// Overview fetches once with the full projection and derives every dataset.
func (s *DashboardService) Overview(ctx context.Context, filters models.DashboardFilters) (*models.DashboardOverview, bool, error) {
	return cachedDataset(ctx, s, "overview", filters, func(ctx context.Context) (*models.DashboardOverview, error) {
		records, err := s.rows.FetchAll(ctx, filters, nil)
		if err != nil {
			return nil, err
		}
		schools := analytics.BySchool(records)
		programmes := analytics.ByProgramme(records)
		modes := analytics.ByDeliveryMode(records)
		return &models.DashboardOverview{
			KPIs:          analytics.Summarize(records, s.cfg.Risk),
			Schools:       schools,
			Programmes:    programmes,
			Weekly:        analytics.WeeklyTrend(records),
			Yearly:        analytics.YearlyTrend(records),
			DeliveryModes: modes,
			Hotspots:      analytics.ModuleHotspots(records, s.cfg.HotspotMinSample),
			AtRisk:        s.enrichAtRisk(ctx, analytics.AtRiskStudents(records, s.cfg.Risk)),
			Insights: analytics.Insights(analytics.InsightInput{
				Schools:       schools,
				Programmes:    programmes,
				DeliveryModes: modes,
			}, s.cfg.Insights),
			GeneratedAt: s.now().UTC(),
		}, nil
	})
}

// KPIs returns the headline tiles.
func (s *DashboardService) KPIs(ctx context.Context, filters models.DashboardFilters) (models.KPISummary, bool, error) {
	return cachedDataset(ctx, s, "kpis", filters, func(ctx context.Context) (models.KPISummary, error) {
		records, err := s.rows.FetchAll(ctx, filters, kpiColumns)
		if err != nil {
			return models.KPISummary{}, err
		}
		return analytics.Summarize(records, s.cfg.Risk), nil
	})
}

// Schools returns the by-school breakdown, worst absence first.
func (s *DashboardService) Schools(ctx context.Context, filters models.DashboardFilters) ([]models.SchoolAttendance, bool, error) {
	return cachedDataset(ctx, s, "schools", filters, func(ctx context.Context) ([]models.SchoolAttendance, error) {
		records, err := s.rows.FetchAll(ctx, filters, schoolColumns)
		if err != nil {
			return nil, err
		}
		return analytics.BySchool(records), nil
	})
}

// Programmes returns attendance per programme, best first.
func (s *DashboardService) Programmes(ctx context.Context, filters models.DashboardFilters) ([]models.ProgrammeAttendance, bool, error) {
	return cachedDataset(ctx, s, "programmes", filters, func(ctx context.Context) ([]models.ProgrammeAttendance, error) {
		records, err := s.rows.FetchAll(ctx, filters, programmeColumns)
		if err != nil {
			return nil, err
		}
		return analytics.ByProgramme(records), nil
	})
}

// Weekly returns the weekly attendance trend.
func (s *DashboardService) Weekly(ctx context.Context, filters models.DashboardFilters) ([]models.WeeklyTrend, bool, error) {
	return cachedDataset(ctx, s, "weekly", filters, func(ctx context.Context) ([]models.WeeklyTrend, error) {
		records, err := s.rows.FetchAll(ctx, filters, weeklyColumns)
		if err != nil {
			return nil, err
		}
		return analytics.WeeklyTrend(records), nil
	})
}

// Yearly returns the per calendar year trend.
func (s *DashboardService) Yearly(ctx context.Context, filters models.DashboardFilters) ([]models.YearlyTrend, bool, error) {
	return cachedDataset(ctx, s, "yearly", filters, func(ctx context.Context) ([]models.YearlyTrend, error) {
		records, err := s.rows.FetchAll(ctx, filters, yearlyColumns)
		if err != nil {
			return nil, err
		}
		return analytics.YearlyTrend(records), nil
	})
}

// DeliveryModes compares in-person and online attendance.
func (s *DashboardService) DeliveryModes(ctx context.Context, filters models.DashboardFilters) ([]models.DeliveryModeAttendance, bool, error) {
	return cachedDataset(ctx, s, "delivery-modes", filters, func(ctx context.Context) ([]models.DeliveryModeAttendance, error) {
		records, err := s.rows.FetchAll(ctx, filters, deliveryColumns)
		if err != nil {
			return nil, err
		}
		return analytics.ByDeliveryMode(records), nil
	})
}

// Hotspots returns modules with enough sessions ranked by absence rate.
func (s *DashboardService) Hotspots(ctx context.Context, filters models.DashboardFilters) ([]models.ModuleHotspot, bool, error) {
	return cachedDataset(ctx, s, "hotspots", filters, func(ctx context.Context) ([]models.ModuleHotspot, error) {
		records, err := s.rows.FetchAll(ctx, filters, hotspotColumns)
		if err != nil {
			return nil, err
		}
		return analytics.ModuleHotspots(records, s.cfg.HotspotMinSample), nil
	})
}

// AtRisk returns the worst flagged students, enriched with their profiles.
func (s *DashboardService) AtRisk(ctx context.Context, filters models.DashboardFilters) ([]models.AtRiskStudent, bool, error) {
	return cachedDataset(ctx, s, "at-risk", filters, func(ctx context.Context) ([]models.AtRiskStudent, error) {
		records, err := s.rows.FetchAll(ctx, filters, atRiskColumns)
		if err != nil {
			return nil, err
		}
		return s.enrichAtRisk(ctx, analytics.AtRiskStudents(records, s.cfg.Risk)), nil
	})
}

// Insights returns at most three heuristic insight cards.
func (s *DashboardService) Insights(ctx context.Context, filters models.DashboardFilters) ([]models.Insight, bool, error) {
	return cachedDataset(ctx, s, "insights", filters, func(ctx context.Context) ([]models.Insight, error) {
		records, err := s.rows.FetchAll(ctx, filters, insightColumns)
		if err != nil {
			return nil, err
		}
		return analytics.Insights(analytics.InsightInput{
			Schools:       analytics.BySchool(records),
			Programmes:    analytics.ByProgramme(records),
			DeliveryModes: analytics.ByDeliveryMode(records),
		}, s.cfg.Insights), nil
	})
}

// Count returns the number of matching rows without fetching them.
func (s *DashboardService) Count(ctx context.Context, filters models.DashboardFilters) (int, bool, error) {
	return cachedDataset(ctx, s, "count", filters, func(ctx context.Context) (int, error) {
		return s.rows.Count(ctx, filters)
	})
}

// Invalidate drops every cached dashboard dataset.
func (s *DashboardService) Invalidate(ctx context.Context) (int, error) {
	return s.cache.Invalidate(ctx, makeAnalyticsCacheKey("dashboard")+":*")
}

// enrichAtRisk keeps the worst AtRiskDetailLimit students and attaches their
// students_dim profile. A failed lookup leaves the statistics unenriched.
func (s *DashboardService) enrichAtRisk(ctx context.Context, students []models.AtRiskStudent) []models.AtRiskStudent {
	if len(students) > s.cfg.AtRiskDetailLimit {
		students = students[:s.cfg.AtRiskDetailLimit]
	}
	if s.students == nil || len(students) == 0 {
		return students
	}

	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.StudentID
	}
	profiles, err := s.students.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("student profile lookup failed", zap.Int("students", len(ids)), zap.Error(err))
		return students
	}
	for i := range students {
		p, ok := profiles[students[i].StudentID]
		if !ok {
			continue
		}
		students[i].StudentNumber = p.StudentNumber
		students[i].FirstName = p.FirstName
		students[i].LastName = p.LastName
		students[i].School = p.School
		students[i].ProgrammeName = p.ProgrammeName
		students[i].CohortYear = p.CohortYear
	}
	return students
}

func cachedDataset[T any](ctx context.Context, s *DashboardService, dataset string, filters models.DashboardFilters, compute func(context.Context) (T, error)) (T, bool, error) {
	key := makeAnalyticsCacheKey("dashboard", dataset, filters.CacheKey())
	var cached T
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}

	value, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	s.cache.Set(ctx, key, value, s.cfg.CacheTTL)
	return value, false, nil
}

func makeAnalyticsCacheKey(parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts) * 16)
	builder.WriteString("analytics")
	for _, part := range parts {
		if part == "" {
			continue
		}
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}
