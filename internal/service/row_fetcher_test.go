package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-insights-api/internal/models"
	appErrors "github.com/noah-isme/attendance-insights-api/pkg/errors"
)

type pageCall struct {
	offset int
	limit  int
}

type fakeAttendanceReader struct {
	rows     []models.AttendanceRow
	calls    []pageCall
	failAt   int
	err      error
	count    int
	countErr error
}

func (f *fakeAttendanceReader) FetchPage(_ context.Context, _ models.DashboardFilters, _ []string, offset, limit int) ([]models.AttendanceRow, error) {
	f.calls = append(f.calls, pageCall{offset: offset, limit: limit})
	if f.err != nil && len(f.calls) == f.failAt {
		return nil, f.err
	}
	if offset >= len(f.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return f.rows[offset:end], nil
}

func (f *fakeAttendanceReader) Count(context.Context, models.DashboardFilters) (int, error) {
	return f.count, f.countErr
}

func attendanceRow(id int64, student, status string) models.AttendanceRow {
	day := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	return models.AttendanceRow{AttendanceID: &id, StudentID: &student, SessionDate: &day, Status: &status}
}

func TestRowFetcherPaginatesUntilShortPage(t *testing.T) {
	repo := &fakeAttendanceReader{rows: []models.AttendanceRow{
		attendanceRow(1, "s-1", "Present"),
		attendanceRow(2, "s-1", "Late"),
		attendanceRow(3, "s-2", "Absent"),
		attendanceRow(4, "s-2", "Excused"),
		attendanceRow(5, "s-3", "Present"),
	}}
	fetcher := NewRowFetcher(repo, RowFetcherConfig{PageSize: 2}, NewMetricsService(), nil)

	records, err := fetcher.FetchAll(context.Background(), models.DashboardFilters{}, nil)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, []pageCall{{0, 2}, {2, 2}, {4, 2}}, repo.calls)
	assert.Equal(t, models.StatusLate, records[1].Status)
}

func TestRowFetcherStopsOnEmptyPage(t *testing.T) {
	repo := &fakeAttendanceReader{rows: []models.AttendanceRow{
		attendanceRow(1, "s-1", "Present"),
		attendanceRow(2, "s-1", "Present"),
	}}
	fetcher := NewRowFetcher(repo, RowFetcherConfig{PageSize: 2}, nil, nil)

	records, err := fetcher.FetchAll(context.Background(), models.DashboardFilters{}, nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Len(t, repo.calls, 2)
}

func TestRowFetcherSkipsMalformedRowsButKeepsPaging(t *testing.T) {
	repo := &fakeAttendanceReader{rows: []models.AttendanceRow{
		attendanceRow(1, "s-1", "Present"),
		attendanceRow(2, "s-1", "Unknown"),
		attendanceRow(3, "", "Absent"),
	}}
	metrics := NewMetricsService()
	fetcher := NewRowFetcher(repo, RowFetcherConfig{PageSize: 2}, metrics, nil)

	records, err := fetcher.FetchAll(context.Background(), models.DashboardFilters{}, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, repo.calls, 2)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(3), snapshot.RowsFetched)
	assert.Equal(t, uint64(2), snapshot.RowsSkipped)
}

func TestRowFetcherAbortsOnPageError(t *testing.T) {
	boom := errors.New("connection reset")
	repo := &fakeAttendanceReader{
		rows:   []models.AttendanceRow{attendanceRow(1, "s-1", "Present"), attendanceRow(2, "s-1", "Present"), attendanceRow(3, "s-1", "Present")},
		failAt: 2,
		err:    boom,
	}
	fetcher := NewRowFetcher(repo, RowFetcherConfig{PageSize: 2}, nil, nil)

	records, err := fetcher.FetchAll(context.Background(), models.DashboardFilters{}, nil)
	require.Error(t, err)
	assert.Nil(t, records)
	assert.ErrorIs(t, err, appErrors.ErrDataFetch)
	assert.ErrorIs(t, err, boom)
}

func TestRowFetcherHonoursCancellation(t *testing.T) {
	repo := &fakeAttendanceReader{rows: []models.AttendanceRow{attendanceRow(1, "s-1", "Present")}}
	fetcher := NewRowFetcher(repo, RowFetcherConfig{PageSize: 2}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fetcher.FetchAll(ctx, models.DashboardFilters{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrDataFetch)
	assert.Empty(t, repo.calls)
	assert.Equal(t, "attendance query timed out", appErrors.FromError(err).Message)
}

func TestRowFetcherMaxPages(t *testing.T) {
	repo := &fakeAttendanceReader{rows: []models.AttendanceRow{
		attendanceRow(1, "s-1", "Present"),
		attendanceRow(2, "s-1", "Present"),
		attendanceRow(3, "s-1", "Present"),
	}}
	fetcher := NewRowFetcher(repo, RowFetcherConfig{PageSize: 1, MaxPages: 2}, nil, nil)

	_, err := fetcher.FetchAll(context.Background(), models.DashboardFilters{}, nil)
	require.ErrorIs(t, err, appErrors.ErrTooLarge)
	assert.Equal(t, []pageCall{{0, 1}, {1, 1}, {2, 1}}, repo.calls)
}

func TestRowFetcherMaxPagesAcceptsExactlyFullPages(t *testing.T) {
	repo := &fakeAttendanceReader{rows: []models.AttendanceRow{
		attendanceRow(1, "s-1", "Present"),
		attendanceRow(2, "s-1", "Absent"),
		attendanceRow(3, "s-2", "Present"),
		attendanceRow(4, "s-2", "Late"),
	}}
	fetcher := NewRowFetcher(repo, RowFetcherConfig{PageSize: 2, MaxPages: 2}, nil, nil)

	records, err := fetcher.FetchAll(context.Background(), models.DashboardFilters{}, nil)
	require.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Equal(t, []pageCall{{0, 2}, {2, 2}, {4, 1}}, repo.calls)
}

func TestRowFetcherCount(t *testing.T) {
	fetcher := NewRowFetcher(&fakeAttendanceReader{count: 42}, RowFetcherConfig{}, nil, nil)
	total, err := fetcher.Count(context.Background(), models.DashboardFilters{})
	require.NoError(t, err)
	assert.Equal(t, 42, total)

	failing := NewRowFetcher(&fakeAttendanceReader{countErr: errors.New("down")}, RowFetcherConfig{}, nil, nil)
	_, err = failing.Count(context.Background(), models.DashboardFilters{})
	assert.ErrorIs(t, err, appErrors.ErrDataFetch)
}

func TestRowFetcherDropsRowsMissingProjectedStudent(t *testing.T) {
	orphan := attendanceRow(2, "s-1", "Absent")
	orphan.StudentID = nil
	repo := &fakeAttendanceReader{rows: []models.AttendanceRow{attendanceRow(1, "s-1", "Present"), orphan}}
	fetcher := NewRowFetcher(repo, RowFetcherConfig{PageSize: 10}, nil, nil)

	records, err := fetcher.FetchAll(context.Background(), models.DashboardFilters{}, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	records, err = fetcher.FetchAll(context.Background(), models.DashboardFilters{}, []string{"school", "attendance_status"})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
