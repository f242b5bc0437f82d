package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/hackgods/doctor-appointment-scheduling/internal/clock"
)

// HoldReader reports which slot times are currently reserved for a doctor's day.
type HoldReader interface {
	HeldTimes(ctx context.Context, doctorID string, date Date) (map[TimeOfDay]bool, error)
}

// Calculator merges the weekly template with ledger holds and the clock.
type Calculator struct {
	template *Template
	holds    HoldReader
	clock    clock.Clock
}

func NewCalculator(template *Template, holds HoldReader, clk clock.Clock) *Calculator {
	if template == nil {
		template = DefaultTemplate()
	}
	return &Calculator{
		template: template,
		holds:    holds,
		clock:    clk,
	}
}

// ComputeSlots returns the day's candidate slots in ascending order. It has no
// side effects; the ledger read is not isolated from concurrent reservations.
func (c *Calculator) ComputeSlots(ctx context.Context, doctorID string, date Date) (DoctorSchedule, error) {
	if date.IsZero() {
		return DoctorSchedule{}, ErrInvalidDate
	}

	held, err := c.holds.HeldTimes(ctx, doctorID, date)
	if err != nil {
		return DoctorSchedule{}, fmt.Errorf("load holds for %s on %s: %w", doctorID, date, err)
	}

	now := c.clock.Now()
	times := c.template.Times(doctorID, date.Weekday())

	slots := make([]TimeSlot, 0, len(times))
	for _, t := range times {
		slots = append(slots, TimeSlot{
			Time:       t,
			IsBooked:   held[t],
			IsDisabled: isPast(date, t, now),
		})
	}

	return DoctorSchedule{
		DoctorID:  doctorID,
		Date:      date,
		TimeSlots: slots,
	}, nil
}

// Offers reports whether t is one of the doctor's candidate times on date.
func (c *Calculator) Offers(doctorID string, date Date, t TimeOfDay) bool {
	for _, candidate := range c.template.Times(doctorID, date.Weekday()) {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsPast reports whether the slot instant is at or before the clock's now.
func (c *Calculator) IsPast(date Date, t TimeOfDay) bool {
	return isPast(date, t, c.clock.Now())
}

func (c *Calculator) Template() *Template {
	return c.template
}

func isPast(date Date, t TimeOfDay, now time.Time) bool {
	today := DateOf(now)
	switch {
	case date.Before(today):
		return true
	case date == today:
		return !date.At(t, now.Location()).After(now)
	default:
		return false
	}
}
