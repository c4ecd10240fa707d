package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-insights-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func strPtr(s string) *string { return &s }

func TestAttendanceRepositoryFetchPageAppliesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	absent := models.StatusAbsent
	online := models.DeliveryOnline
	from := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	filters := models.DashboardFilters{
		DateFrom:     &from,
		School:       strPtr("Business"),
		DeliveryMode: &online,
		Status:       &absent,
	}

	day := time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"student_id", "session_date", "attendance_status"}).
		AddRow("s-1", day, "Absent").
		AddRow("s-2", day, "Absent")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id, session_date, attendance_status FROM attendance_fact WHERE session_date >= $1::date AND school = $2 AND LOWER(delivery_mode) = $3 AND LOWER(attendance_status) = $4 ORDER BY attendance_id LIMIT $5 OFFSET $6")).
		WithArgs("2024-09-01", "Business", "online", "absent", 2, 4).
		WillReturnRows(rows)

	page, err := repo.FetchPage(context.Background(), filters, []string{"student_id", "session_date", "status"}, 4, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, page[0].StudentID)
	assert.Equal(t, "s-1", *page[0].StudentID)
	assert.Equal(t, "Absent", *page[1].Status)
	assert.Nil(t, page[0].School)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFetchPageAlwaysProjectsStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT school, attendance_status FROM attendance_fact ORDER BY attendance_id LIMIT $1 OFFSET $2")).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"school", "attendance_status"}))

	page, err := repo.FetchPage(context.Background(), models.DashboardFilters{}, []string{"school", "school"}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFetchPageRejectsUnknownColumn(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	_, err := repo.FetchPage(context.Background(), models.DashboardFilters{}, []string{"school; DROP TABLE attendance_fact"}, 0, 10)
	require.Error(t, err)
}

func TestAttendanceRepositoryFetchPagePropagatesErrors(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_fact")).WillReturnError(boom)

	_, err := repo.FetchPage(context.Background(), models.DashboardFilters{}, nil, 0, 10)
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	cohort := 2022
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attendance_fact WHERE academic_year = $1 AND cohort_year = $2")).
		WithArgs("2024/25", 2022).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1234))

	total, err := repo.Count(context.Background(), models.DashboardFilters{AcademicYear: strPtr("2024/25"), CohortYear: &cohort})
	require.NoError(t, err)
	assert.Equal(t, 1234, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
