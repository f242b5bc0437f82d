package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidTime = errors.New("invalid time of day")
	ErrInvalidDate = errors.New("invalid calendar date")
)

const dateLayout = "2006-01-02"

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

const minutesPerDay = 24 * 60

func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %02d:%02d", ErrInvalidTime, hour, minute)
	}
	return TimeOfDay(hour*60 + minute), nil
}

// MustTimeOfDay panics on a malformed label. Only for static tables.
func MustTimeOfDay(label string) TimeOfDay {
	t, err := ParseTimeOfDay(label)
	if err != nil {
		panic(err)
	}
	return t
}

var timeLayouts = []string{"03:04 PM", "3:04 PM", "03:04PM", "3:04PM", "15:04"}

// ParseTimeOfDay accepts 12-hour labels ("09:30 AM", "9:30 am") and 24-hour "14:00".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return TimeOfDay(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Label renders the canonical 12-hour form, e.g. "01:30 PM".
func (t TimeOfDay) Label() string {
	h := t.Hour()
	period := "AM"
	if h >= 12 {
		period = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%02d:%02d %s", h12, t.Minute(), period)
}

func (t TimeOfDay) String() string { return t.Label() }

func (t TimeOfDay) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d minutes", ErrInvalidTime, int(t))
	}
	return []byte(t.Label()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Date is a calendar day with no time or location component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// At combines the day with a time of day in loc.
func (d Date) At(t TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, t.Hour(), t.Minute(), 0, 0, loc)
}

func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// TimeSlot is one candidate appointment window on a doctor's day.
type TimeSlot struct {
	Time       TimeOfDay
	IsBooked   bool
	IsDisabled bool
}

// Available reports whether a patient may pick the slot.
func (s TimeSlot) Available() bool {
	return !s.IsBooked && !s.IsDisabled
}

// DoctorSchedule is computed on demand and never persisted.
type DoctorSchedule struct {
	DoctorID  string
	Date      Date
	TimeSlots []TimeSlot
}

// Available returns the slots a patient can still book.
func (s DoctorSchedule) Available() []TimeSlot {
	out := make([]TimeSlot, 0, len(s.TimeSlots))
	for _, ts := range s.TimeSlots {
		if ts.Available() {
			out = append(out, ts)
		}
	}
	return out
}
