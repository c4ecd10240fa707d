package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-insights-api/internal/models"
	"github.com/noah-isme/attendance-insights-api/internal/repository"
	appErrors "github.com/noah-isme/attendance-insights-api/pkg/errors"
)

// Filter dimensions exposed to dropdowns.
const (
	DimensionSchools         = "schools"
	DimensionAcademicYears   = "academic-years"
	DimensionProgrammeLevels = "programme-levels"
	DimensionProgrammes      = "programmes"
	DimensionCourses         = "courses"
	DimensionCohortYears     = "cohort-years"
)

type filterOptionLister interface {
	Schools(ctx context.Context) ([]string, error)
	AcademicYears(ctx context.Context) ([]string, error)
	ProgrammeLevels(ctx context.Context) ([]string, error)
	ProgrammeNames(ctx context.Context, school *string) ([]string, error)
	Courses(ctx context.Context, school, programme *string) ([]repository.CourseOption, error)
	CohortYears(ctx context.Context) ([]int, error)
}

// FilterScope narrows the dependent dimensions.
type FilterScope struct {
	School        *string
	ProgrammeName *string
}

func (s FilterScope) cacheKey() string {
	return models.DashboardFilters{School: s.School, ProgrammeName: s.ProgrammeName}.CacheKey()
}

// FilterOptionsService serves cached dropdown values.
type FilterOptionsService struct {
	repo    filterOptionLister
	cache   *CacheService
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewFilterOptionsService constructs the service.
func NewFilterOptionsService(repo filterOptionLister, cache *CacheService, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *FilterOptionsService {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilterOptionsService{repo: repo, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

// Options returns the values of one dimension. Programmes honour scope.School and
// courses honour both scope fields.
func (s *FilterOptionsService) Options(ctx context.Context, dimension string, scope FilterScope) ([]models.FilterOption, bool, error) {
	key := makeAnalyticsCacheKey("filters", dimension, scope.cacheKey())
	var cached []models.FilterOption
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}

	start := time.Now()
	options, err := s.load(ctx, dimension, scope)
	if err != nil {
		return nil, false, err
	}
	s.metrics.ObserveDBQuery("filter_"+dimension, time.Since(start))
	s.cache.Set(ctx, key, options, s.ttl)
	return options, false, nil
}

func (s *FilterOptionsService) load(ctx context.Context, dimension string, scope FilterScope) ([]models.FilterOption, error) {
	var (
		values []string
		err    error
	)
	switch dimension {
	case DimensionSchools:
		values, err = s.repo.Schools(ctx)
	case DimensionAcademicYears:
		values, err = s.repo.AcademicYears(ctx)
	case DimensionProgrammeLevels:
		values, err = s.repo.ProgrammeLevels(ctx)
	case DimensionProgrammes:
		values, err = s.repo.ProgrammeNames(ctx, scope.School)
	case DimensionCohortYears:
		years, err := s.repo.CohortYears(ctx)
		if err != nil {
			return nil, s.wrap(dimension, err)
		}
		options := make([]models.FilterOption, 0, len(years))
		for _, y := range years {
			v := strconv.Itoa(y)
			options = append(options, models.FilterOption{Value: v, Label: v})
		}
		return options, nil
	case DimensionCourses:
		courses, err := s.repo.Courses(ctx, scope.School, scope.ProgrammeName)
		if err != nil {
			return nil, s.wrap(dimension, err)
		}
		options := make([]models.FilterOption, 0, len(courses))
		for _, c := range courses {
			title := c.Code
			if c.Title != nil && *c.Title != "" {
				title = *c.Title
			}
			options = append(options, models.FilterOption{Value: c.Code, Label: c.Code + ": " + title})
		}
		return options, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown filter dimension "+dimension)
	}
	if err != nil {
		return nil, s.wrap(dimension, err)
	}

	options := make([]models.FilterOption, 0, len(values))
	for _, v := range values {
		options = append(options, models.FilterOption{Value: v, Label: v})
	}
	return options, nil
}

func (s *FilterOptionsService) wrap(dimension string, err error) error {
	s.logger.Error("load filter options", zap.String("dimension", dimension), zap.Error(err))
	return appErrors.Within(appErrors.ErrDataFetch, err, "failed to load filter options")
}
