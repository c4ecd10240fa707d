package dto

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/attendance-insights-api/internal/models"
)

// DashboardFilterQuery binds the filter query string shared by dashboard and export
// endpoints. Empty values and "all" mean unconstrained.
type DashboardFilterQuery struct {
	DateFrom       string `form:"dateFrom" validate:"omitempty,datetime=2006-01-02"`
	DateTo         string `form:"dateTo" validate:"omitempty,datetime=2006-01-02"`
	AcademicYear   string `form:"academicYear" validate:"omitempty,max=32"`
	Term           string `form:"term" validate:"omitempty,max=32"`
	School         string `form:"school" validate:"omitempty,max=128"`
	ProgrammeLevel string `form:"programmeLevel" validate:"omitempty,max=64"`
	ProgrammeName  string `form:"programmeName" validate:"omitempty,max=256"`
	CourseCode     string `form:"courseCode" validate:"omitempty,max=32"`
	CohortYear     string `form:"cohortYear" validate:"omitempty,numeric,len=4"`
	DeliveryMode   string `form:"deliveryMode" validate:"omitempty,max=16"`
	Status         string `form:"status" validate:"omitempty,max=16"`
}

// ToFilters converts the bound query into DashboardFilters.
func (q DashboardFilterQuery) ToFilters() (models.DashboardFilters, error) {
	snap := models.FilterSnapshot{
		DateFrom:       optional(q.DateFrom),
		DateTo:         optional(q.DateTo),
		AcademicYear:   optional(q.AcademicYear),
		Term:           optional(q.Term),
		School:         optional(q.School),
		ProgrammeLevel: optional(q.ProgrammeLevel),
		ProgrammeName:  optional(q.ProgrammeName),
		CourseCode:     optional(q.CourseCode),
		DeliveryMode:   optional(q.DeliveryMode),
		Status:         optional(q.Status),
	}
	if raw := optional(q.CohortYear); raw != nil {
		year, err := strconv.Atoi(*raw)
		if err != nil {
			return models.DashboardFilters{}, fmt.Errorf("cohortYear: %w", err)
		}
		snap.CohortYear = &year
	}
	return FiltersFromSnapshot(snap)
}

// FiltersFromSnapshot parses a JSON filter payload and checks the date range order.
func FiltersFromSnapshot(snap models.FilterSnapshot) (models.DashboardFilters, error) {
	filters, err := snap.Filters()
	if err != nil {
		return models.DashboardFilters{}, err
	}
	if filters.DateFrom != nil && filters.DateTo != nil && filters.DateFrom.After(*filters.DateTo) {
		return models.DashboardFilters{}, fmt.Errorf("dateFrom must not be after dateTo")
	}
	return filters, nil
}

func optional(raw string) *string {
	v := strings.TrimSpace(raw)
	if v == "" || strings.EqualFold(v, "all") {
		return nil
	}
	return &v
}
