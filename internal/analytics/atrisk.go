package analytics

import (
	"sort"
	"time"

	"github.com/noah-isme/attendance-insights-api/internal/models"
)

// RiskPolicy holds the thresholds that flag a student as at risk.
type RiskPolicy struct {
	// RateThreshold flags students whose attendance rate is strictly below it.
	RateThreshold int
	// RecentAbsences flags students with at least this many absences in Window.
	RecentAbsences int
	// Window is the trailing period, ending at the latest session date in the
	// record set, in which absences count as recent.
	Window time.Duration
}

// DefaultRiskPolicy flags rate < 80 or 3+ absences in the trailing 28 days.
func DefaultRiskPolicy() RiskPolicy {
	return RiskPolicy{RateThreshold: 80, RecentAbsences: 3, Window: 28 * 24 * time.Hour}
}

func (p RiskPolicy) withDefaults() RiskPolicy {
	d := DefaultRiskPolicy()
	if p.RateThreshold <= 0 {
		p.RateThreshold = d.RateThreshold
	}
	if p.RecentAbsences <= 0 {
		p.RecentAbsences = d.RecentAbsences
	}
	if p.Window <= 0 {
		p.Window = d.Window
	}
	return p
}

type studentStat struct {
	id             string
	total          int
	attended       int
	late           int
	recentAbsences int
	lastSeen       time.Time
}

// flagged compares the unrounded rate: attended/total < threshold/100.
func (s *studentStat) flagged(p RiskPolicy) bool {
	return s.attended*100 < p.RateThreshold*s.total || s.recentAbsences >= p.RecentAbsences
}

// WindowAnchor returns the latest session date in records, or the zero time when
// there is none.
func WindowAnchor(records []models.AttendanceRecord) time.Time {
	var anchor time.Time
	for _, r := range records {
		if r.SessionDate.After(anchor) {
			anchor = r.SessionDate
		}
	}
	return anchor
}

func studentStats(records []models.AttendanceRecord, p RiskPolicy) []*studentStat {
	windowStart := WindowAnchor(records).Add(-p.Window)
	index := make(map[string]*studentStat)
	ordered := make([]*studentStat, 0)
	for _, r := range records {
		if r.StudentID == "" {
			continue
		}
		s, ok := index[r.StudentID]
		if !ok {
			s = &studentStat{id: r.StudentID}
			index[r.StudentID] = s
			ordered = append(ordered, s)
		}
		s.total++
		switch r.Status {
		case models.StatusPresent, models.StatusLate:
			s.attended++
			if r.SessionDate.After(s.lastSeen) {
				s.lastSeen = r.SessionDate
			}
			if r.Status == models.StatusLate {
				s.late++
			}
		case models.StatusAbsent:
			if !r.SessionDate.Before(windowStart) {
				s.recentAbsences++
			}
		}
	}
	return ordered
}

// AtRiskStudents returns every flagged student, lowest attendance rate first.
func AtRiskStudents(records []models.AttendanceRecord, policy RiskPolicy) []models.AtRiskStudent {
	policy = policy.withDefaults()
	out := make([]models.AtRiskStudent, 0)
	for _, s := range studentStats(records, policy) {
		if !s.flagged(policy) {
			continue
		}
		entry := models.AtRiskStudent{
			StudentID:      s.id,
			TotalSessions:  s.total,
			Attended:       s.attended,
			AttendanceRate: Rate(s.attended, s.total),
			RecentAbsences: s.recentAbsences,
			LateCount:      s.late,
		}
		if !s.lastSeen.IsZero() {
			d := s.lastSeen.Format(models.DateLayout)
			entry.LastSeenDate = &d
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AttendanceRate != out[j].AttendanceRate {
			return out[i].AttendanceRate < out[j].AttendanceRate
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out
}

// Summarize computes the KPI tiles over the full record set.
func Summarize(records []models.AttendanceRecord, policy RiskPolicy) models.KPISummary {
	policy = policy.withDefaults()
	var counts models.StatusCounts
	for _, r := range records {
		counts.Add(r.Status)
	}
	stats := studentStats(records, policy)
	atRisk := 0
	for _, s := range stats {
		if s.flagged(policy) {
			atRisk++
		}
	}
	return models.KPISummary{
		TotalStudents:  len(stats),
		TotalRecords:   len(records),
		AttendanceRate: Rate(counts.Attended(), counts.Total),
		AbsenceRate:    Rate(counts.Absent, counts.Total),
		LatenessRate:   Rate(counts.Late, counts.Total),
		AtRiskStudents: atRisk,
	}
}
