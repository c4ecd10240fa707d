package models

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// DateLayout is the calendar date format used on the wire and in SQL parameters.
const DateLayout = "2006-01-02"

// DashboardFilters narrows the attendance rows feeding every dashboard dataset.
// Nil fields are unconstrained; set fields combine with AND semantics and the
// date range is inclusive on both ends.
type DashboardFilters struct {
	DateFrom       *time.Time
	DateTo         *time.Time
	AcademicYear   *string
	Term           *string
	School         *string
	ProgrammeLevel *string
	ProgrammeName  *string
	CourseCode     *string
	CohortYear     *int
	DeliveryMode   *DeliveryMode
	Status         *Status
}

// CacheKey renders the filters canonically; equal filters always produce equal
// keys and values are query-escaped so distinct filters never collide.
func (f DashboardFilters) CacheKey() string {
	values := url.Values{}
	add := func(name, value string) {
		if value != "" {
			values.Set(name, value)
		}
	}
	add("from", formatDate(f.DateFrom))
	add("to", formatDate(f.DateTo))
	add("ay", deref(f.AcademicYear))
	add("term", deref(f.Term))
	add("school", deref(f.School))
	add("level", deref(f.ProgrammeLevel))
	add("programme", deref(f.ProgrammeName))
	add("course", deref(f.CourseCode))
	if f.CohortYear != nil {
		add("cohort", strconv.Itoa(*f.CohortYear))
	}
	add("mode", string(deref(f.DeliveryMode)))
	add("status", string(deref(f.Status)))
	if len(values) == 0 {
		return "all"
	}
	return values.Encode()
}

// Snapshot converts the filters into the payload forwarded with a question.
func (f DashboardFilters) Snapshot() FilterSnapshot {
	snap := FilterSnapshot{
		AcademicYear:   f.AcademicYear,
		Term:           f.Term,
		School:         f.School,
		ProgrammeLevel: f.ProgrammeLevel,
		ProgrammeName:  f.ProgrammeName,
		CourseCode:     f.CourseCode,
		CohortYear:     f.CohortYear,
	}
	if f.DateFrom != nil {
		s := formatDate(f.DateFrom)
		snap.DateFrom = &s
	}
	if f.DateTo != nil {
		s := formatDate(f.DateTo)
		snap.DateTo = &s
	}
	if f.DeliveryMode != nil {
		s := string(*f.DeliveryMode)
		snap.DeliveryMode = &s
	}
	if f.Status != nil {
		s := string(*f.Status)
		snap.Status = &s
	}
	return snap
}

// FilterSnapshot is the JSON view of DashboardFilters sent to the insights
// gateway: dates as YYYY-MM-DD, everything else passed through.
type FilterSnapshot struct {
	DateFrom       *string `json:"dateFrom,omitempty"`
	DateTo         *string `json:"dateTo,omitempty"`
	AcademicYear   *string `json:"academicYear,omitempty"`
	Term           *string `json:"term,omitempty"`
	School         *string `json:"school,omitempty"`
	ProgrammeLevel *string `json:"programmeLevel,omitempty"`
	ProgrammeName  *string `json:"programmeName,omitempty"`
	CourseCode     *string `json:"courseCode,omitempty"`
	CohortYear     *int    `json:"cohortYear,omitempty"`
	DeliveryMode   *string `json:"deliveryMode,omitempty"`
	Status         *string `json:"status,omitempty"`
}

// Filters parses the snapshot back into DashboardFilters.
func (s FilterSnapshot) Filters() (DashboardFilters, error) {
	f := DashboardFilters{
		AcademicYear:   s.AcademicYear,
		Term:           s.Term,
		School:         s.School,
		ProgrammeLevel: s.ProgrammeLevel,
		ProgrammeName:  s.ProgrammeName,
		CourseCode:     s.CourseCode,
		CohortYear:     s.CohortYear,
	}
	var err error
	if f.DateFrom, err = parseDate(s.DateFrom); err != nil {
		return DashboardFilters{}, fmt.Errorf("dateFrom: %w", err)
	}
	if f.DateTo, err = parseDate(s.DateTo); err != nil {
		return DashboardFilters{}, fmt.Errorf("dateTo: %w", err)
	}
	if s.DeliveryMode != nil {
		mode, ok := ParseDeliveryMode(*s.DeliveryMode)
		if !ok {
			return DashboardFilters{}, fmt.Errorf("deliveryMode: unknown value %q", *s.DeliveryMode)
		}
		f.DeliveryMode = &mode
	}
	if s.Status != nil {
		status, ok := ParseStatus(*s.Status)
		if !ok {
			return DashboardFilters{}, fmt.Errorf("status: unknown value %q", *s.Status)
		}
		f.Status = &status
	}
	return f, nil
}

func parseDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}
