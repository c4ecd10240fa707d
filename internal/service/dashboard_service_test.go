package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-insights-api/internal/models"
	appErrors "github.com/noah-isme/attendance-insights-api/pkg/errors"
)

type fakeRowSource struct {
	records []models.AttendanceRecord
	err     error
	calls   int
	columns [][]string
	count   int
}

func (f *fakeRowSource) FetchAll(_ context.Context, _ models.DashboardFilters, columns []string) ([]models.AttendanceRecord, error) {
	f.calls++
	f.columns = append(f.columns, columns)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeRowSource) Count(context.Context, models.DashboardFilters) (int, error) {
	f.calls++
	return f.count, f.err
}

type fakeStudentDirectory struct {
	profiles map[string]models.StudentProfile
	err      error
	ids      []string
}

func (f *fakeStudentDirectory) FindByIDs(_ context.Context, ids []string) (map[string]models.StudentProfile, error) {
	f.ids = ids
	return f.profiles, f.err
}

type memoryCacheRepo struct {
	store map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{store: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) (int, error) {
	removed := 0
	for key := range m.store {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.store, key)
			removed++
		}
	}
	return removed, nil
}

func record(student, school, programme string, mode models.DeliveryMode, status models.Status, day time.Time) models.AttendanceRecord {
	return models.AttendanceRecord{
		StudentID:     student,
		School:        school,
		ProgrammeName: programme,
		DeliveryMode:  mode,
		Status:        status,
		SessionDate:   day,
		WeekStart:     day,
	}
}

func sampleRecords() []models.AttendanceRecord {
	day := time.Date(2024, 10, 7, 0, 0, 0, 0, time.UTC)
	var out []models.AttendanceRecord
	for i := 0; i < 8; i++ {
		out = append(out, record("s-1", "Business", "BSc Accounting", models.DeliveryInPerson, models.StatusPresent, day))
	}
	for i := 0; i < 2; i++ {
		out = append(out, record("s-1", "Business", "BSc Accounting", models.DeliveryInPerson, models.StatusAbsent, day))
	}
	for i := 0; i < 3; i++ {
		out = append(out, record("s-2", "Engineering", "BEng Civil", models.DeliveryOnline, models.StatusAbsent, day.AddDate(0, 0, -i)))
	}
	out = append(out, record("s-2", "Engineering", "BEng Civil", models.DeliveryOnline, models.StatusLate, day))
	return out
}

func TestDashboardServiceSchoolsUsesNarrowProjection(t *testing.T) {
	rows := &fakeRowSource{records: sampleRecords()}
	svc := NewDashboardService(DashboardServiceParams{Rows: rows})

	schools, hit, err := svc.Schools(context.Background(), models.DashboardFilters{})
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, schools, 2)
	assert.Equal(t, "Engineering", schools[0].School)
	assert.Equal(t, 75, schools[0].AbsenceRate)
	assert.Equal(t, [][]string{schoolColumns}, rows.columns)
}

func TestDashboardServiceCachesPerFilterSet(t *testing.T) {
	rows := &fakeRowSource{records: sampleRecords()}
	cache := NewCacheService(newMemoryCacheRepo(), NewMetricsService(), time.Minute, nil, true)
	svc := NewDashboardService(DashboardServiceParams{Rows: rows, Cache: cache})
	ctx := context.Background()

	first, hit, err := svc.KPIs(ctx, models.DashboardFilters{})
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := svc.KPIs(ctx, models.DashboardFilters{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, rows.calls)

	school := "Business"
	_, hit, err = svc.KPIs(ctx, models.DashboardFilters{School: &school})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, rows.calls)

	removed, err := svc.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func TestDashboardServicePropagatesFetchErrors(t *testing.T) {
	rows := &fakeRowSource{err: appErrors.Clone(appErrors.ErrDataFetch, "")}
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	svc := NewDashboardService(DashboardServiceParams{Rows: rows, Cache: cache})

	_, _, err := svc.Overview(context.Background(), models.DashboardFilters{})
	require.ErrorIs(t, err, appErrors.ErrDataFetch)

	_, hit, err := svc.Overview(context.Background(), models.DashboardFilters{})
	require.Error(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, rows.calls)
}

func TestDashboardServiceOverview(t *testing.T) {
	rows := &fakeRowSource{records: sampleRecords()}
	svc := NewDashboardService(DashboardServiceParams{Rows: rows})
	fixed := time.Date(2024, 10, 8, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	overview, _, err := svc.Overview(context.Background(), models.DashboardFilters{})
	require.NoError(t, err)
	assert.Equal(t, 14, overview.KPIs.TotalRecords)
	assert.Equal(t, 2, overview.KPIs.TotalStudents)
	assert.Len(t, overview.Schools, 2)
	assert.Len(t, overview.DeliveryModes, 2)
	assert.Empty(t, overview.Hotspots)
	assert.NotEmpty(t, overview.Insights)
	assert.LessOrEqual(t, len(overview.Insights), 3)
	assert.Equal(t, fixed, overview.GeneratedAt)
	assert.Equal(t, [][]string{nil}, rows.columns)
}

func TestDashboardServiceAtRiskEnrichment(t *testing.T) {
	rows := &fakeRowSource{records: sampleRecords()}
	students := &fakeStudentDirectory{profiles: map[string]models.StudentProfile{
		"s-2": {StudentID: "s-2", StudentNumber: "20240002", FirstName: "Grace", LastName: "Hopper", School: "Engineering", CohortYear: 2023},
	}}
	svc := NewDashboardService(DashboardServiceParams{Rows: rows, Students: students})

	atRisk, _, err := svc.AtRisk(context.Background(), models.DashboardFilters{})
	require.NoError(t, err)
	require.Len(t, atRisk, 1)
	assert.Equal(t, "s-2", atRisk[0].StudentID)
	assert.Equal(t, "Hopper", atRisk[0].LastName)
	assert.Equal(t, 25, atRisk[0].AttendanceRate)
	assert.Equal(t, 3, atRisk[0].RecentAbsences)
	assert.Equal(t, []string{"s-2"}, students.ids)
}

func TestDashboardServiceAtRiskSurvivesProfileFailure(t *testing.T) {
	rows := &fakeRowSource{records: sampleRecords()}
	students := &fakeStudentDirectory{err: errors.New("students_dim unavailable")}
	svc := NewDashboardService(DashboardServiceParams{Rows: rows, Students: students})

	atRisk, _, err := svc.AtRisk(context.Background(), models.DashboardFilters{})
	require.NoError(t, err)
	require.Len(t, atRisk, 1)
	assert.Empty(t, atRisk[0].LastName)
}

func TestDashboardServiceAtRiskDetailLimit(t *testing.T) {
	day := time.Date(2024, 10, 7, 0, 0, 0, 0, time.UTC)
	var records []models.AttendanceRecord
	for _, id := range []string{"a", "b", "c"} {
		records = append(records, record(id, "Business", "BSc", models.DeliveryOnline, models.StatusAbsent, day))
	}
	svc := NewDashboardService(DashboardServiceParams{
		Rows:   &fakeRowSource{records: records},
		Config: DashboardServiceConfig{AtRiskDetailLimit: 2},
	})

	atRisk, _, err := svc.AtRisk(context.Background(), models.DashboardFilters{})
	require.NoError(t, err)
	require.Len(t, atRisk, 2)
	assert.Equal(t, "a", atRisk[0].StudentID)
	assert.Equal(t, "b", atRisk[1].StudentID)
}

func TestDashboardServiceCount(t *testing.T) {
	svc := NewDashboardService(DashboardServiceParams{Rows: &fakeRowSource{count: 7}})
	total, hit, err := svc.Count(context.Background(), models.DashboardFilters{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, total)
}

func TestMakeAnalyticsCacheKey(t *testing.T) {
	assert.Equal(t, "analytics:dashboard:kpis:all", makeAnalyticsCacheKey("dashboard", "kpis", "all"))
	assert.Equal(t, "analytics:dashboard:a|b", makeAnalyticsCacheKey("dashboard", "", "a:b"))
}
