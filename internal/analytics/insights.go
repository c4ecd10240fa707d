package analytics

import (
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/attendance-insights-api/internal/models"
)

// MaxInsights caps the number of cards returned by Insights.
const MaxInsights = 3

// Insight identifiers and icons understood by the dashboard.
const (
	InsightSchoolAbsence   = "school-absent-high"
	InsightSchoolVariance  = "school-variance"
	InsightProgrammeLow    = "program-low-attendance"
	InsightDeliveryModeGap = "delivery-mode-diff"
	InsightDegreeLevelGap  = "masters-bachelors-diff"
	InsightLatenessByMode  = "lateness-mode"
)

// InsightThresholds are the percentage-point limits the rules compare against.
type InsightThresholds struct {
	SchoolAbsenceWarning  int
	SchoolAbsenceCritical int
	SchoolVariance        int
	ProgrammeTarget       int
	ProgrammeCritical     int
	DeliveryModeGap       int
	DegreeLevelGap        int
	LatenessGap           int
}

// DefaultInsightThresholds returns the production thresholds.
func DefaultInsightThresholds() InsightThresholds {
	return InsightThresholds{
		SchoolAbsenceWarning:  5,
		SchoolAbsenceCritical: 15,
		SchoolVariance:        10,
		ProgrammeTarget:       80,
		ProgrammeCritical:     70,
		DeliveryModeGap:       5,
		DegreeLevelGap:        5,
		LatenessGap:           3,
	}
}

// InsightInput carries the aggregated datasets, each sorted as returned by
// BySchool, ByProgramme and ByDeliveryMode.
type InsightInput struct {
	Schools       []models.SchoolAttendance
	Programmes    []models.ProgrammeAttendance
	DeliveryModes []models.DeliveryModeAttendance
}

type insightRule func(InsightInput, InsightThresholds) (models.Insight, bool)

// Rule order is the priority order: when more than MaxInsights fire, the
// earliest rules win.
var insightRules = []insightRule{
	highAbsenceSchool,
	schoolVariance,
	lowAttendanceProgramme,
	deliveryModeGap,
	degreeLevelGap,
	latenessByMode,
}

// Insights evaluates every rule in priority order and keeps the first MaxInsights.
func Insights(in InsightInput, th InsightThresholds) []models.Insight {
	out := make([]models.Insight, 0, MaxInsights)
	for _, rule := range insightRules {
		if len(out) == MaxInsights {
			break
		}
		if insight, ok := rule(in, th); ok {
			out = append(out, insight)
		}
	}
	return out
}

func highAbsenceSchool(in InsightInput, th InsightThresholds) (models.Insight, bool) {
	if len(in.Schools) == 0 {
		return models.Insight{}, false
	}
	top := in.Schools[0]
	if top.Total == 0 || top.AbsenceRate <= th.SchoolAbsenceWarning {
		return models.Insight{}, false
	}
	severity := models.SeverityWarning
	if top.AbsenceRate > th.SchoolAbsenceCritical {
		severity = models.SeverityCritical
	}
	return models.Insight{
		ID:    InsightSchoolAbsence,
		Title: "High Absence Rate Detected",
		Description: fmt.Sprintf(
			"%s has the highest absence rate at %d%%. Look into timetabling clashes, course load and engagement in this school.",
			top.School, top.AbsenceRate),
		Severity: severity,
		Icon:     "AlertTriangle",
	}, true
}

func schoolVariance(in InsightInput, th InsightThresholds) (models.Insight, bool) {
	schools := make([]models.SchoolAttendance, 0, len(in.Schools))
	for _, s := range in.Schools {
		if s.Total > 0 {
			schools = append(schools, s)
		}
	}
	if len(schools) < 2 {
		return models.Insight{}, false
	}
	worst, best := schools[0], schools[0]
	for _, s := range schools[1:] {
		if s.AbsenceRate > worst.AbsenceRate {
			worst = s
		}
		if s.AbsenceRate < best.AbsenceRate {
			best = s
		}
	}
	spread := worst.AbsenceRate - best.AbsenceRate
	if spread <= th.SchoolVariance {
		return models.Insight{}, false
	}
	return models.Insight{
		ID:    InsightSchoolVariance,
		Title: "Significant School Variance",
		Description: fmt.Sprintf(
			"Absence rates differ by %d percentage points between schools. %s has the most absences and %s the fewest; sharing practice between them could even out engagement.",
			spread, worst.School, best.School),
		Severity: models.SeverityInfo,
		Icon:     "TrendingDown",
	}, true
}

func lowAttendanceProgramme(in InsightInput, th InsightThresholds) (models.Insight, bool) {
	var lowest *models.ProgrammeAttendance
	for i := range in.Programmes {
		p := &in.Programmes[i]
		if p.Rate >= th.ProgrammeTarget {
			continue
		}
		if lowest == nil || p.Rate < lowest.Rate {
			lowest = p
		}
	}
	if lowest == nil {
		return models.Insight{}, false
	}
	severity := models.SeverityWarning
	if lowest.Rate < th.ProgrammeCritical {
		severity = models.SeverityCritical
	}
	return models.Insight{
		ID:    InsightProgrammeLow,
		Title: "Programme Needs Intervention",
		Description: fmt.Sprintf(
			"%s has an attendance rate of only %d%%, below the %d%% target. Focusing support here would recover a large share of missed sessions.",
			lowest.ProgrammeName, lowest.Rate, th.ProgrammeTarget),
		Severity: severity,
		Icon:     "Target",
	}, true
}

func deliveryModeGap(in InsightInput, th InsightThresholds) (models.Insight, bool) {
	online, inPerson, ok := deliveryBuckets(in.DeliveryModes)
	if !ok {
		return models.Insight{}, false
	}
	diff := online.AttendanceRate - inPerson.AttendanceRate
	if diff < 0 {
		diff = -diff
	}
	if diff <= th.DeliveryModeGap {
		return models.Insight{}, false
	}
	better, worse := online, inPerson
	if inPerson.AttendanceRate > online.AttendanceRate {
		better, worse = inPerson, online
	}
	return models.Insight{
		ID:    InsightDeliveryModeGap,
		Title: "Delivery Mode Impact",
		Description: fmt.Sprintf(
			"%s sessions have %d percentage points higher attendance than %s sessions. Consider offering more %s delivery for modules with persistent absence.",
			better.DeliveryMode, diff, worse.DeliveryMode, strings.ToLower(better.DeliveryMode)),
		Severity: models.SeverityInfo,
		Icon:     "Monitor",
	}, true
}

var (
	mastersMarkers   = []string{"master", "msc", "ma "}
	bachelorsMarkers = []string{"bachelor", "bsc", "ba "}
)

// degreeLevelGap compares the mean programme rate of Masters and Bachelors
// programmes, recognised by name.
func degreeLevelGap(in InsightInput, th InsightThresholds) (models.Insight, bool) {
	var masters, bachelors []int
	for _, p := range in.Programmes {
		name := strings.ToLower(p.ProgrammeName)
		if containsAny(name, mastersMarkers) {
			masters = append(masters, p.Rate)
		}
		if containsAny(name, bachelorsMarkers) {
			bachelors = append(bachelors, p.Rate)
		}
	}
	if len(masters) == 0 || len(bachelors) == 0 {
		return models.Insight{}, false
	}
	avgMasters, avgBachelors := mean(masters), mean(bachelors)
	diff := math.Abs(avgMasters - avgBachelors)
	if diff <= float64(th.DegreeLevelGap) {
		return models.Insight{}, false
	}
	higher, lower := "Masters", "Bachelors"
	if avgBachelors > avgMasters {
		higher, lower = lower, higher
	}
	return models.Insight{
		ID:    InsightDegreeLevelGap,
		Title: "Degree Level Pattern Detected",
		Description: fmt.Sprintf(
			"%s programmes show %.1f percentage points higher attendance than %s programmes. The two cohorts may need different engagement or scheduling support.",
			higher, diff, lower),
		Severity: models.SeverityInfo,
		Icon:     "GraduationCap",
	}, true
}

func latenessByMode(in InsightInput, th InsightThresholds) (models.Insight, bool) {
	online, inPerson, ok := deliveryBuckets(in.DeliveryModes)
	if !ok {
		return models.Insight{}, false
	}
	onlineLate := float64(online.Late) / float64(online.Total) * 100
	inPersonLate := float64(inPerson.Late) / float64(inPerson.Total) * 100
	diff := math.Abs(onlineLate - inPersonLate)
	if diff <= float64(th.LatenessGap) {
		return models.Insight{}, false
	}
	later := online.DeliveryMode
	if inPersonLate > onlineLate {
		later = inPerson.DeliveryMode
	}
	return models.Insight{
		ID:    InsightLatenessByMode,
		Title: "Lateness by Delivery Mode",
		Description: fmt.Sprintf(
			"%s sessions have %.1f percentage points more late arrivals. In person this can point to room access problems; online, to connection issues at the start of the session.",
			later, diff),
		Severity: models.SeverityWarning,
		Icon:     "Clock",
	}, true
}

// deliveryBuckets finds the online and in-person rows; both must have sessions.
func deliveryBuckets(modes []models.DeliveryModeAttendance) (online, inPerson *models.DeliveryModeAttendance, ok bool) {
	for i := range modes {
		m := &modes[i]
		switch strings.ToLower(m.DeliveryMode) {
		case string(models.DeliveryOnline):
			online = m
		case string(models.DeliveryInPerson):
			inPerson = m
		}
	}
	if online == nil || inPerson == nil || online.Total == 0 || inPerson.Total == 0 {
		return nil, nil, false
	}
	return online, inPerson, true
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func mean(values []int) float64 {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}
