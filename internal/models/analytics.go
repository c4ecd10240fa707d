package models

import "time"

// StatusCounts tallies attendance outcomes. Total always equals the sum of the
// four status counts.
type StatusCounts struct {
	Present int `json:"present"`
	Late    int `json:"late"`
	Excused int `json:"excused"`
	Absent  int `json:"absent"`
	Total   int `json:"total"`
}

// Add counts one record with the given status.
func (c *StatusCounts) Add(s Status) {
	switch s {
	case StatusPresent:
		c.Present++
	case StatusLate:
		c.Late++
	case StatusExcused:
		c.Excused++
	case StatusAbsent:
		c.Absent++
	default:
		return
	}
	c.Total++
}

// Attended is present plus late.
func (c StatusCounts) Attended() int {
	return c.Present + c.Late
}

// KPISummary feeds the dashboard tiles.
type KPISummary struct {
	TotalStudents  int `json:"total_students"`
	TotalRecords   int `json:"total_records"`
	AttendanceRate int `json:"attendance_rate"`
	AbsenceRate    int `json:"absence_rate"`
	LatenessRate   int `json:"lateness_rate"`
	AtRiskStudents int `json:"at_risk_students"`
}

// SchoolAttendance is the by-school bucket.
type SchoolAttendance struct {
	School string `json:"school_name"`
	StatusCounts
	AbsenceRate int `json:"absence_rate"`
}

// ProgrammeAttendance is the by-programme bucket.
type ProgrammeAttendance struct {
	ProgrammeName string `json:"program_name"`
	Rate          int    `json:"rate"`
	Total         int    `json:"total"`
}

// WeeklyTrend is one point of the weekly attendance line.
type WeeklyTrend struct {
	WeekStart      string `json:"week_start"`
	AttendanceRate int    `json:"attendance_rate"`
	Total          int    `json:"total"`
}

// YearlyTrend aggregates by calendar year of the session date.
type YearlyTrend struct {
	Year int `json:"year"`
	StatusCounts
	AttendanceRate int `json:"attendance_rate"`
}

// DeliveryModeAttendance compares in-person and online delivery.
type DeliveryModeAttendance struct {
	DeliveryMode string `json:"delivery_mode"`
	StatusCounts
	AttendanceRate int `json:"attendance_rate"`
}

// ModuleHotspot flags a course with unusual absence.
type ModuleHotspot struct {
	CourseCode     string `json:"course_code"`
	CourseTitle    string `json:"course_title"`
	School         string `json:"school"`
	ProgrammeLevel string `json:"programme_level"`
	AttendanceRate int    `json:"attendance_rate"`
	AbsenceRate    int    `json:"absence_rate"`
	LatenessRate   int    `json:"lateness_rate"`
	TotalRecords   int    `json:"total_records"`
}

// AtRiskStudent is a student whose attendance crossed a risk threshold. Profile
// fields are filled from students_dim when available.
type AtRiskStudent struct {
	StudentID      string  `json:"student_id"`
	StudentNumber  string  `json:"student_number,omitempty"`
	FirstName      string  `json:"first_name,omitempty"`
	LastName       string  `json:"last_name,omitempty"`
	School         string  `json:"school,omitempty"`
	ProgrammeName  string  `json:"programme_name,omitempty"`
	CohortYear     int     `json:"cohort_year,omitempty"`
	TotalSessions  int     `json:"total_sessions"`
	Attended       int     `json:"attended"`
	AttendanceRate int     `json:"attendance_rate"`
	RecentAbsences int     `json:"absence_count"`
	LateCount      int     `json:"late_count"`
	LastSeenDate   *string `json:"last_seen_date"`
}

// InsightSeverity grades an insight card.
type InsightSeverity string

const (
	SeverityInfo     InsightSeverity = "info"
	SeverityWarning  InsightSeverity = "warning"
	SeverityCritical InsightSeverity = "critical"
)

// Insight is a generated, transient dashboard card.
type Insight struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Severity    InsightSeverity `json:"severity"`
	Icon        string          `json:"icon"`
}

// DashboardOverview bundles every dataset computed from one fetch.
type DashboardOverview struct {
	KPIs          KPISummary               `json:"kpis"`
	Schools       []SchoolAttendance       `json:"schools"`
	Programmes    []ProgrammeAttendance    `json:"programmes"`
	Weekly        []WeeklyTrend            `json:"weekly"`
	Yearly        []YearlyTrend            `json:"yearly"`
	DeliveryModes []DeliveryModeAttendance `json:"delivery_modes"`
	Hotspots      []ModuleHotspot          `json:"hotspots"`
	AtRisk        []AtRiskStudent          `json:"at_risk"`
	Insights      []Insight                `json:"insights"`
	GeneratedAt   time.Time                `json:"generated_at"`
}

// FilterOption is a dropdown entry.
type FilterOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// SystemMetrics represents process level metrics captured from instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	RowsFetched              uint64    `json:"rows_fetched"`
	RowsSkipped              uint64    `json:"rows_skipped"`
	AssistantRequests        uint64    `json:"assistant_requests"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
