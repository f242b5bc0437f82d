package ledger

import (
	"context"
	"sync"

	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

// Memory is an in-process ledger built on sync.Map's atomic
// LoadOrStore/CompareAndDelete.
type Memory struct {
	holds sync.Map // Key -> holder string
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Reserve(ctx context.Context, key Key, holder string) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, loaded := m.holds.LoadOrStore(key, holder); loaded {
		return ErrAlreadyHeld
	}
	return nil
}

func (m *Memory) Release(ctx context.Context, key Key, holder string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if holder == "" {
		_, ok := m.holds.LoadAndDelete(key)
		return ok, nil
	}
	return m.holds.CompareAndDelete(key, holder), nil
}

func (m *Memory) HeldTimes(ctx context.Context, doctorID string, date schedule.Date) (map[schedule.TimeOfDay]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	held := make(map[schedule.TimeOfDay]bool)
	m.holds.Range(func(k, _ any) bool {
		key := k.(Key)
		if key.DoctorID == doctorID && key.Date == date {
			held[key.Time] = true
		}
		return true
	})
	return held, nil
}

// Holder returns who holds key, if anyone.
func (m *Memory) Holder(key Key) (string, bool) {
	v, ok := m.holds.Load(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}
