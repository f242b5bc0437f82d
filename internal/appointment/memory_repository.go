package appointment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps appointments in process. Used by tests and by
// STORE_BACKEND=memory for local runs.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]Appointment
	byKey  map[string]uuid.UUID
	events []EventLog
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[uuid.UUID]Appointment),
		byKey: make(map[string]uuid.UUID),
		now:   time.Now,
	}
}

func (r *MemoryRepository) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: create appointment: %w", ErrStorageUnavailable, err)
	}

	rec := *a
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Status == "" {
		rec.Status = StatusBooked
	}
	now := r.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = rec.CreatedAt

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[rec.ID]; exists {
		return nil, fmt.Errorf("%w: duplicate appointment id %s", ErrStorageUnavailable, rec.ID)
	}
	if rec.IdempotencyKey != "" {
		if _, used := r.byKey[rec.IdempotencyKey]; used {
			return nil, ErrDuplicateIdempotencyKey
		}
		r.byKey[rec.IdempotencyKey] = rec.ID
	}
	r.byID[rec.ID] = rec

	out := rec
	return &out, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: get appointment: %w", ErrStorageUnavailable, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) GetByIdempotencyKey(ctx context.Context, key string) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: get appointment: %w", ErrStorageUnavailable, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[key]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a := r.byID[id]
	return &a, nil
}

func (r *MemoryRepository) ListByPatient(ctx context.Context, q ListQuery) ([]Appointment, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: list appointments: %w", ErrStorageUnavailable, err)
	}

	r.mu.RLock()
	var matched []Appointment
	for _, a := range r.byID {
		if a.PatientID == q.PatientID && statusIn(a.Status, q.Statuses) {
			matched = append(matched, a)
		}
	}
	r.mu.RUnlock()

	asc := q.Ascending()
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.ScheduledAt.Equal(b.ScheduledAt) {
			if asc {
				return a.ScheduledAt.Before(b.ScheduledAt)
			}
			return a.ScheduledAt.After(b.ScheduledAt)
		}
		return a.ID.String() < b.ID.String()
	})

	total := len(matched)
	start := q.Offset()
	if start < 0 || start >= total {
		return []Appointment{}, total, nil
	}
	end := total
	if q.PageSize < total-start {
		end = start + q.PageSize
	}
	return matched[start:end], total, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: update status: %w", ErrStorageUnavailable, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if !CanTransition(a.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
	a.Status = to
	a.UpdatedAt = r.now()
	r.byID[id] = a

	return &a, nil
}

func (r *MemoryRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: list due: %w", ErrStorageUnavailable, err)
	}

	r.mu.RLock()
	var due []Appointment
	for _, a := range r.byID {
		if a.Status == StatusUpcoming && !a.ScheduledAt.After(now) {
			due = append(due, a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(due[j].ScheduledAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *MemoryRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventLog(nil), r.events...)
}

func statusIn(s Status, set []Status) bool {
	if len(set) == 0 {
		return true
	}
	for _, want := range set {
		if s == want {
			return true
		}
	}
	return false
}
