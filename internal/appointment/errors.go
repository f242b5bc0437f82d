package appointment

import (
	"errors"
	"fmt"

	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

// ErrInvalidInput is the parent of every validation failure.
var ErrInvalidInput = errors.New("invalid input")

var (
	ErrMissingDoctorID  = fmt.Errorf("%w: doctor id is required", ErrInvalidInput)
	ErrMissingPatientID = fmt.Errorf("%w: patient id is required", ErrInvalidInput)
	ErrInvalidDate      = fmt.Errorf("%w: %w", ErrInvalidInput, schedule.ErrInvalidDate)
	ErrInvalidTime      = fmt.Errorf("%w: %w", ErrInvalidInput, schedule.ErrInvalidTime)
	ErrSlotNotOffered   = fmt.Errorf("%w: time is not offered on that day", ErrInvalidInput)
	ErrSlotInPast       = fmt.Errorf("%w: slot is in the past", ErrInvalidInput)
	ErrInvalidPage      = fmt.Errorf("%w: page must be >= 0 and size between 1 and %d", ErrInvalidInput, MaxPageSize)
	ErrInvalidStatus    = fmt.Errorf("%w: unknown status", ErrInvalidInput)
)

var (
	ErrSlotTaken = errors.New("slot already taken")
	// ErrStoreFailure means the slot was reserved but the appointment record
	// could not be written.
	ErrStoreFailure = errors.New("appointment could not be stored")
	// ErrIdempotencyConflict means the key was already used for a different booking.
	ErrIdempotencyConflict = errors.New("idempotency key reused for a different booking")
)
