package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrStorageUnavailable      = errors.New("storage unavailable")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

// Repository contains all appointment storage needed by the service.
type Repository interface {
	// Create assigns an ID when absent and defaults the status to Booked.
	Create(ctx context.Context, a *Appointment) (*Appointment, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Appointment, error)

	// ListByPatient returns one page plus the total number of matches.
	// A page past the end yields no items and the real total.
	ListByPatient(ctx context.Context, q ListQuery) ([]Appointment, int, error)

	// UpdateStatus is a compare-and-set against the lifecycle: it only applies
	// when the current status may move to "to".
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error)

	// Completion worker
	ListDue(ctx context.Context, now time.Time, limit int) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
