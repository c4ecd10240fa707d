package analytics

import (
	"sort"
	"strings"

	"github.com/noah-isme/attendance-insights-api/internal/models"
)

// DefaultMinSampleSize is the hotspot sample floor used when none is configured.
const DefaultMinSampleSize = 200

type tally struct {
	key    string
	counts models.StatusCounts
}

// groupBy tallies records by key in first-seen order. Records with an empty key
// are left out of the grouping entirely.
func groupBy(records []models.AttendanceRecord, key func(models.AttendanceRecord) string) []*tally {
	index := make(map[string]*tally)
	ordered := make([]*tally, 0)
	for _, r := range records {
		k := strings.TrimSpace(key(r))
		if k == "" {
			continue
		}
		t, ok := index[k]
		if !ok {
			t = &tally{key: k}
			index[k] = t
			ordered = append(ordered, t)
		}
		t.counts.Add(r.Status)
	}
	return ordered
}

// BySchool returns one bucket per school sorted by absence rate, highest first.
func BySchool(records []models.AttendanceRecord) []models.SchoolAttendance {
	groups := groupBy(records, func(r models.AttendanceRecord) string { return r.School })
	out := make([]models.SchoolAttendance, 0, len(groups))
	for _, g := range groups {
		out = append(out, models.SchoolAttendance{
			School:       g.key,
			StatusCounts: g.counts,
			AbsenceRate:  Rate(g.counts.Absent, g.counts.Total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AbsenceRate != out[j].AbsenceRate {
			return out[i].AbsenceRate > out[j].AbsenceRate
		}
		return out[i].School < out[j].School
	})
	return out
}

// ByProgramme returns attendance rate per programme sorted highest first.
func ByProgramme(records []models.AttendanceRecord) []models.ProgrammeAttendance {
	groups := groupBy(records, func(r models.AttendanceRecord) string { return r.ProgrammeName })
	out := make([]models.ProgrammeAttendance, 0, len(groups))
	for _, g := range groups {
		out = append(out, models.ProgrammeAttendance{
			ProgrammeName: g.key,
			Rate:          Rate(g.counts.Attended(), g.counts.Total),
			Total:         g.counts.Total,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rate != out[j].Rate {
			return out[i].Rate > out[j].Rate
		}
		return out[i].ProgrammeName < out[j].ProgrammeName
	})
	return out
}

// WeeklyTrend returns attendance rate per week start, oldest week first.
func WeeklyTrend(records []models.AttendanceRecord) []models.WeeklyTrend {
	groups := groupBy(records, func(r models.AttendanceRecord) string {
		if r.WeekStart.IsZero() {
			return ""
		}
		return r.WeekStart.Format(models.DateLayout)
	})
	out := make([]models.WeeklyTrend, 0, len(groups))
	for _, g := range groups {
		out = append(out, models.WeeklyTrend{
			WeekStart:      g.key,
			AttendanceRate: Rate(g.counts.Attended(), g.counts.Total),
			Total:          g.counts.Total,
		})
	}
	// YYYY-MM-DD sorts chronologically as a string.
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart < out[j].WeekStart })
	return out
}

// YearlyTrend returns status counts per calendar year of the session date.
func YearlyTrend(records []models.AttendanceRecord) []models.YearlyTrend {
	byYear := make(map[int]*models.StatusCounts)
	for _, r := range records {
		if r.SessionDate.IsZero() {
			continue
		}
		y := r.SessionDate.Year()
		c, ok := byYear[y]
		if !ok {
			c = &models.StatusCounts{}
			byYear[y] = c
		}
		c.Add(r.Status)
	}
	out := make([]models.YearlyTrend, 0, len(byYear))
	for year, c := range byYear {
		out = append(out, models.YearlyTrend{
			Year:           year,
			StatusCounts:   *c,
			AttendanceRate: Rate(c.Attended(), c.Total),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// ByDeliveryMode compares delivery modes, ordered by mode name.
func ByDeliveryMode(records []models.AttendanceRecord) []models.DeliveryModeAttendance {
	groups := groupBy(records, func(r models.AttendanceRecord) string { return r.DeliveryMode.Label() })
	out := make([]models.DeliveryModeAttendance, 0, len(groups))
	for _, g := range groups {
		out = append(out, models.DeliveryModeAttendance{
			DeliveryMode:   g.key,
			StatusCounts:   g.counts,
			AttendanceRate: Rate(g.counts.Attended(), g.counts.Total),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeliveryMode < out[j].DeliveryMode })
	return out
}

// ModuleHotspots ranks courses by absence rate, worst first. Courses with fewer
// than minSampleSize records are excluded; minSampleSize <= 0 selects the default.
func ModuleHotspots(records []models.AttendanceRecord, minSampleSize int) []models.ModuleHotspot {
	if minSampleSize <= 0 {
		minSampleSize = DefaultMinSampleSize
	}
	type course struct {
		models.ModuleHotspot
		counts models.StatusCounts
	}
	index := make(map[string]*course)
	for _, r := range records {
		code := strings.TrimSpace(r.CourseCode)
		if code == "" {
			continue
		}
		c, ok := index[code]
		if !ok {
			c = &course{ModuleHotspot: models.ModuleHotspot{
				CourseCode:     code,
				CourseTitle:    r.CourseTitle,
				School:         r.School,
				ProgrammeLevel: r.ProgrammeLevel,
			}}
			index[code] = c
		}
		c.counts.Add(r.Status)
	}

	out := make([]models.ModuleHotspot, 0, len(index))
	for _, c := range index {
		if c.counts.Total < minSampleSize {
			continue
		}
		h := c.ModuleHotspot
		h.TotalRecords = c.counts.Total
		h.AttendanceRate = Rate(c.counts.Attended(), c.counts.Total)
		h.AbsenceRate = Rate(c.counts.Absent, c.counts.Total)
		h.LatenessRate = Rate(c.counts.Late, c.counts.Total)
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AbsenceRate != out[j].AbsenceRate {
			return out[i].AbsenceRate > out[j].AbsenceRate
		}
		return out[i].CourseCode < out[j].CourseCode
	})
	return out
}
