package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// WeeklyTemplate maps each weekday to its candidate slot times. A weekday that is
// present with no times is a day off; an absent weekday is undefined.
type WeeklyTemplate map[time.Weekday][]TimeOfDay

// Template is the process-wide clinic hours table. It is built once at startup
// and is read-only afterwards.
type Template struct {
	clinic   WeeklyTemplate
	doctors  map[string]WeeklyTemplate
	fallback []TimeOfDay
}

func NewTemplate(clinic WeeklyTemplate, fallback []TimeOfDay, doctors map[string]WeeklyTemplate) *Template {
	t := &Template{
		clinic:   normalizeWeek(clinic),
		doctors:  make(map[string]WeeklyTemplate, len(doctors)),
		fallback: normalizeTimes(fallback),
	}
	for id, week := range doctors {
		t.doctors[NormalizeDoctorID(id)] = normalizeWeek(week)
	}
	return t
}

// DefaultTemplate is the clinic's standard week: weekends are shorter and sparser
// than weekdays.
func DefaultTemplate() *Template {
	return NewTemplate(WeeklyTemplate{
		time.Sunday:    labels("10:00 AM", "11:00 AM", "02:00 PM", "03:00 PM"),
		time.Monday:    labels("09:00 AM", "09:30 AM", "10:00 AM", "10:30 AM", "11:00 AM", "01:00 PM", "01:30 PM", "02:00 PM", "02:30 PM", "03:00 PM"),
		time.Tuesday:   labels("08:30 AM", "09:00 AM", "10:00 AM", "11:00 AM", "01:00 PM", "02:00 PM", "03:00 PM", "04:00 PM"),
		time.Wednesday: labels("09:00 AM", "10:00 AM", "11:00 AM", "11:30 AM", "01:30 PM", "02:30 PM", "03:30 PM"),
		time.Thursday:  labels("08:00 AM", "09:00 AM", "09:30 AM", "10:30 AM", "11:30 AM", "01:00 PM", "02:00 PM", "03:00 PM", "04:00 PM", "04:30 PM"),
		time.Friday:    labels("09:00 AM", "10:00 AM", "11:00 AM", "01:00 PM", "02:00 PM"),
		time.Saturday:  labels("09:00 AM", "10:00 AM", "11:00 AM", "12:00 PM"),
	}, defaultFallback(), nil)
}

func defaultFallback() []TimeOfDay {
	return labels("09:00 AM", "10:00 AM", "11:00 AM", "01:00 PM", "02:00 PM", "03:00 PM")
}

// Times returns the candidate times for a doctor on a weekday, ascending.
// Doctors without custom hours get the clinic week.
func (t *Template) Times(doctorID string, day time.Weekday) []TimeOfDay {
	if week, ok := t.doctors[NormalizeDoctorID(doctorID)]; ok {
		if times, ok := week[day]; ok {
			return append([]TimeOfDay(nil), times...)
		}
	}
	if times, ok := t.clinic[day]; ok {
		return append([]TimeOfDay(nil), times...)
	}
	return append([]TimeOfDay(nil), t.fallback...)
}

// HasCustomHours reports whether the doctor has overrides in the template.
func (t *Template) HasCustomHours(doctorID string) bool {
	_, ok := t.doctors[NormalizeDoctorID(doctorID)]
	return ok
}

type templateFile struct {
	Fallback []string                       `mapstructure:"fallback"`
	Weekly   map[string][]string            `mapstructure:"weekly"`
	Doctors  map[string]map[string][]string `mapstructure:"doctors"`
}

// LoadTemplate reads clinic hours from a YAML, JSON or TOML file. An empty path
// yields DefaultTemplate. Sections missing from the file keep their defaults.
//
// Doctor IDs are matched case-insensitively since the config keys are folded.
func LoadTemplate(path string) (*Template, error) {
	if path == "" {
		return DefaultTemplate(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read schedule template %s: %w", path, err)
	}

	var raw templateFile
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("decode schedule template %s: %w", path, err)
	}

	def := DefaultTemplate()

	clinic := def.clinic
	if len(raw.Weekly) > 0 {
		week, err := parseWeek(raw.Weekly)
		if err != nil {
			return nil, fmt.Errorf("weekly: %w", err)
		}
		clinic = week
	}

	fallback := def.fallback
	if raw.Fallback != nil {
		times, err := parseLabels(raw.Fallback)
		if err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
		fallback = times
	}

	doctors := make(map[string]WeeklyTemplate, len(raw.Doctors))
	for id, days := range raw.Doctors {
		week, err := parseWeek(days)
		if err != nil {
			return nil, fmt.Errorf("doctor %s: %w", id, err)
		}
		doctors[id] = week
	}

	return NewTemplate(clinic, fallback, doctors), nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

func parseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if d, ok := weekdayNames[key]; ok {
		return d, nil
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n), nil
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func parseWeek(days map[string][]string) (WeeklyTemplate, error) {
	week := make(WeeklyTemplate, len(days))
	for name, raw := range days {
		day, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		times, err := parseLabels(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		week[day] = times
	}
	return week, nil
}

func parseLabels(raw []string) ([]TimeOfDay, error) {
	out := make([]TimeOfDay, 0, len(raw))
	for _, s := range raw {
		t, err := ParseTimeOfDay(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func labels(ls ...string) []TimeOfDay {
	out := make([]TimeOfDay, len(ls))
	for i, l := range ls {
		out[i] = MustTimeOfDay(l)
	}
	return out
}

func normalizeWeek(w WeeklyTemplate) WeeklyTemplate {
	out := make(WeeklyTemplate, len(w))
	for day, times := range w {
		out[day] = normalizeTimes(times)
	}
	return out
}

// normalizeTimes copies, sorts and dedups so callers can rely on ascending order.
func normalizeTimes(times []TimeOfDay) []TimeOfDay {
	out := make([]TimeOfDay, 0, len(times))
	seen := make(map[TimeOfDay]bool, len(times))
	for _, t := range times {
		if !t.Valid() || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NormalizeDoctorID is the canonical form of a doctor ID used for template
// lookups and slot keys alike.
func NormalizeDoctorID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
