package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-insights-api/internal/models"
)

// attendanceColumns is the projection allow list for attendance_fact.
var attendanceColumns = map[string]struct{}{
	"attendance_id":     {},
	"student_id":        {},
	"session_date":      {},
	"week_start":        {},
	"academic_year":     {},
	"term":              {},
	"school":            {},
	"programme_level":   {},
	"programme_name":    {},
	"cohort_year":       {},
	"course_code":       {},
	"course_title":      {},
	"delivery_mode":     {},
	"instructor":        {},
	"attendance_status": {},
	"minutes_late":      {},
}

// AttendanceRepository reads the attendance_fact table.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FetchPage returns one page of rows matching filters ordered by attendance_id. The
// status column is always projected because every row is validated on it.
func (r *AttendanceRepository) FetchPage(ctx context.Context, filters models.DashboardFilters, columns []string, offset, limit int) ([]models.AttendanceRow, error) {
	projection, err := projectColumns(columns)
	if err != nil {
		return nil, err
	}

	where, args := buildAttendanceFilter(filters)
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(projection)
	sb.WriteString(" FROM attendance_fact")
	sb.WriteString(where)
	args = append(args, limit)
	sb.WriteString(fmt.Sprintf(" ORDER BY attendance_id LIMIT $%d", len(args)))
	args = append(args, offset)
	sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))

	var rows []models.AttendanceRow
	if err := r.db.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("fetch attendance page at offset %d: %w", offset, err)
	}
	return rows, nil
}

// Count returns the number of rows matching filters.
func (r *AttendanceRepository) Count(ctx context.Context, filters models.DashboardFilters) (int, error) {
	where, args := buildAttendanceFilter(filters)
	query := "SELECT COUNT(*) FROM attendance_fact" + where

	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return total, nil
}

func projectColumns(columns []string) (string, error) {
	if len(columns) == 0 {
		columns = DefaultAttendanceColumns
	}
	seen := make(map[string]struct{}, len(columns)+1)
	out := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		col = strings.TrimSpace(col)
		if col == "status" {
			col = "attendance_status"
		}
		if _, ok := attendanceColumns[col]; !ok {
			return "", fmt.Errorf("unknown attendance column %q", col)
		}
		if _, dup := seen[col]; dup {
			continue
		}
		seen[col] = struct{}{}
		out = append(out, col)
	}
	if _, ok := seen["attendance_status"]; !ok {
		out = append(out, "attendance_status")
	}
	return strings.Join(out, ", "), nil
}

// DefaultAttendanceColumns projects every column the aggregations read.
var DefaultAttendanceColumns = []string{
	"attendance_id", "student_id", "session_date", "week_start", "school",
	"programme_level", "programme_name", "course_code", "course_title",
	"delivery_mode", "attendance_status", "minutes_late",
}

// buildAttendanceFilter renders filters as a WHERE clause. Status and delivery mode
// compare case-insensitively because the table stores their display labels.
func buildAttendanceFilter(f models.DashboardFilters) (string, []interface{}) {
	conditions := make([]string, 0, 11)
	args := make([]interface{}, 0, 11)

	add := func(expr string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}

	if f.DateFrom != nil {
		add("session_date >= $%d::date", f.DateFrom.Format(models.DateLayout))
	}
	if f.DateTo != nil {
		add("session_date <= $%d::date", f.DateTo.Format(models.DateLayout))
	}
	if f.AcademicYear != nil {
		add("academic_year = $%d", *f.AcademicYear)
	}
	if f.Term != nil {
		add("term = $%d", *f.Term)
	}
	if f.School != nil {
		add("school = $%d", *f.School)
	}
	if f.ProgrammeLevel != nil {
		add("programme_level = $%d", *f.ProgrammeLevel)
	}
	if f.ProgrammeName != nil {
		add("programme_name = $%d", *f.ProgrammeName)
	}
	if f.CourseCode != nil {
		add("course_code = $%d", *f.CourseCode)
	}
	if f.CohortYear != nil {
		add("cohort_year = $%d", *f.CohortYear)
	}
	if f.DeliveryMode != nil {
		add("LOWER(delivery_mode) = $%d", string(*f.DeliveryMode))
	}
	if f.Status != nil {
		add("LOWER(attendance_status) = $%d", string(*f.Status))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
