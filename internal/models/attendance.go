package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the normalised attendance outcome of a single session.
type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
	StatusAbsent  Status = "absent"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPresent, StatusLate, StatusExcused, StatusAbsent}

// ParseStatus normalises a stored or user supplied status case-insensitively.
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPresent:
		return StatusPresent, true
	case StatusLate:
		return StatusLate, true
	case StatusExcused:
		return StatusExcused, true
	case StatusAbsent:
		return StatusAbsent, true
	}
	return "", false
}

// Label renders the status the way it is stored in attendance_fact.
func (s Status) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// DeliveryMode is how a session was delivered.
type DeliveryMode string

const (
	DeliveryInPerson DeliveryMode = "in-person"
	DeliveryOnline   DeliveryMode = "online"
)

// ParseDeliveryMode normalises "In-person"/"Online" case-insensitively.
func ParseDeliveryMode(raw string) (DeliveryMode, bool) {
	switch DeliveryMode(strings.ToLower(strings.TrimSpace(raw))) {
	case DeliveryInPerson:
		return DeliveryInPerson, true
	case DeliveryOnline:
		return DeliveryOnline, true
	}
	return "", false
}

// Label renders the mode the way it is stored in attendance_fact.
func (m DeliveryMode) Label() string {
	switch m {
	case DeliveryInPerson:
		return "In-person"
	case DeliveryOnline:
		return "Online"
	}
	return string(m)
}

// AttendanceRecord is one validated row of attendance_fact. Fields outside the
// requested projection keep their zero value.
type AttendanceRecord struct {
	AttendanceID   int64        `json:"attendance_id"`
	StudentID      string       `json:"student_id"`
	SessionDate    time.Time    `json:"session_date"`
	WeekStart      time.Time    `json:"week_start"`
	AcademicYear   string       `json:"academic_year"`
	Term           string       `json:"term"`
	School         string       `json:"school"`
	ProgrammeLevel string       `json:"programme_level"`
	ProgrammeName  string       `json:"programme_name"`
	CohortYear     int          `json:"cohort_year"`
	CourseCode     string       `json:"course_code"`
	CourseTitle    string       `json:"course_title"`
	DeliveryMode   DeliveryMode `json:"delivery_mode"`
	Instructor     string       `json:"instructor"`
	Status         Status       `json:"status"`
	MinutesLate    int          `json:"minutes_late"`
}

// AttendanceRow mirrors attendance_fact as scanned by sqlx. Every column is
// nullable because callers project arbitrary column subsets.
type AttendanceRow struct {
	AttendanceID   *int64     `db:"attendance_id"`
	StudentID      *string    `db:"student_id"`
	SessionDate    *time.Time `db:"session_date"`
	WeekStart      *time.Time `db:"week_start"`
	AcademicYear   *string    `db:"academic_year"`
	Term           *string    `db:"term"`
	School         *string    `db:"school"`
	ProgrammeLevel *string    `db:"programme_level"`
	ProgrammeName  *string    `db:"programme_name"`
	CohortYear     *int       `db:"cohort_year"`
	CourseCode     *string    `db:"course_code"`
	CourseTitle    *string    `db:"course_title"`
	DeliveryMode   *string    `db:"delivery_mode"`
	Instructor     *string    `db:"instructor"`
	Status         *string    `db:"attendance_status"`
	MinutesLate    *int       `db:"minutes_late"`
}

// ErrMalformedRow marks rows that cannot be turned into an AttendanceRecord.
var ErrMalformedRow = errors.New("malformed attendance row")

// ToRecord validates the row against the columns it was scanned with; an empty
// projection means the full default column set. A status is always required.
// student_id and session_date are required whenever they were projected, and a
// projected delivery mode must parse.
func (r AttendanceRow) ToRecord(projection ...string) (AttendanceRecord, error) {
	rec := AttendanceRecord{
		AttendanceID:   deref(r.AttendanceID),
		StudentID:      deref(r.StudentID),
		AcademicYear:   deref(r.AcademicYear),
		Term:           deref(r.Term),
		School:         deref(r.School),
		ProgrammeLevel: deref(r.ProgrammeLevel),
		ProgrammeName:  deref(r.ProgrammeName),
		CohortYear:     deref(r.CohortYear),
		CourseCode:     deref(r.CourseCode),
		CourseTitle:    deref(r.CourseTitle),
		Instructor:     deref(r.Instructor),
		MinutesLate:    deref(r.MinutesLate),
	}
	if r.SessionDate != nil {
		rec.SessionDate = DateOnly(*r.SessionDate)
	}
	if r.WeekStart != nil {
		rec.WeekStart = DateOnly(*r.WeekStart)
	}

	status, ok := ParseStatus(deref(r.Status))
	if !ok {
		return AttendanceRecord{}, fmt.Errorf("%w: status %q", ErrMalformedRow, deref(r.Status))
	}
	rec.Status = status

	if r.DeliveryMode != nil {
		mode, ok := ParseDeliveryMode(*r.DeliveryMode)
		if !ok {
			return AttendanceRecord{}, fmt.Errorf("%w: delivery mode %q", ErrMalformedRow, *r.DeliveryMode)
		}
		rec.DeliveryMode = mode
	}

	if projected(projection, "student_id") && strings.TrimSpace(rec.StudentID) == "" {
		return AttendanceRecord{}, fmt.Errorf("%w: missing student id", ErrMalformedRow)
	}
	if projected(projection, "session_date") && r.SessionDate == nil {
		return AttendanceRecord{}, fmt.Errorf("%w: missing session date", ErrMalformedRow)
	}
	return rec, nil
}

func projected(projection []string, column string) bool {
	if len(projection) == 0 {
		return true
	}
	for _, c := range projection {
		if strings.TrimSpace(c) == column {
			return true
		}
	}
	return false
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
