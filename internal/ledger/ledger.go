package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

var (
	ErrAlreadyHeld = errors.New("slot already held")
	ErrUnavailable = errors.New("slot ledger unavailable")
	ErrInvalidKey  = errors.New("invalid slot key")
)

// Key identifies one bookable window: a doctor, a calendar day and a time of day.
type Key struct {
	DoctorID string
	Date     schedule.Date
	Time     schedule.TimeOfDay
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%02d:%02d", k.DoctorID, k.Date, k.Time.Hour(), k.Time.Minute())
}

func (k Key) Validate() error {
	if k.DoctorID == "" || k.Date.IsZero() || !k.Time.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidKey, k)
	}
	return nil
}

// Ledger records which slots are currently held.
//
// Reserve is linearizable per key: of any number of concurrent callers on the
// same key exactly one gets nil and the rest get ErrAlreadyHeld. It either takes
// effect completely or not at all.
//
// Release with a non-empty holder only removes that holder's reservation; an
// empty holder removes whatever is there. It returns false, nil when nothing was
// released.
type Ledger interface {
	Reserve(ctx context.Context, key Key, holder string) error
	Release(ctx context.Context, key Key, holder string) (bool, error)
	HeldTimes(ctx context.Context, doctorID string, date schedule.Date) (map[schedule.TimeOfDay]bool, error)
}
