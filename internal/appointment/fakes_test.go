package appointment

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-scheduling/internal/clock"
	"github.com/hackgods/doctor-appointment-scheduling/internal/ledger"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

// Friday 2024-12-20, 08:00 UTC.
var testNow = time.Date(2024, 12, 20, 8, 0, 0, 0, time.UTC)

type faultyLedger struct {
	*ledger.Memory

	reserveErr   error
	reserveLands bool // apply the reserve before returning reserveErr
	releaseErr   error
	afterReserve func()
}

func (l *faultyLedger) Reserve(ctx context.Context, key ledger.Key, holder string) error {
	if l.reserveErr != nil {
		if l.reserveLands {
			_ = l.Memory.Reserve(ctx, key, holder)
		}
		return l.reserveErr
	}
	if err := l.Memory.Reserve(ctx, key, holder); err != nil {
		return err
	}
	if l.afterReserve != nil {
		l.afterReserve()
	}
	return nil
}

func (l *faultyLedger) Release(ctx context.Context, key ledger.Key, holder string) (bool, error) {
	if l.releaseErr != nil {
		return false, l.releaseErr
	}
	return l.Memory.Release(ctx, key, holder)
}

type faultyRepo struct {
	*MemoryRepository

	createErr     error
	createPersist bool // store the record even though createErr is returned
	getErr        error
}

func (r *faultyRepo) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	if r.createErr != nil {
		if r.createPersist {
			_, _ = r.MemoryRepository.Create(ctx, a)
		}
		return nil, r.createErr
	}
	return r.MemoryRepository.Create(ctx, a)
}

func (r *faultyRepo) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.MemoryRepository.GetByID(ctx, id)
}

type recordingQueue struct {
	mu      sync.Mutex
	entries []string
}

func (q *recordingQueue) EnqueueRelease(_ context.Context, key ledger.Key, holder string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, fmt.Sprintf("%s#%s", key, holder))
	return nil
}

func (q *recordingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

type fixture struct {
	svc    *Service
	repo   Repository
	ledger ledger.Ledger
	clock  *clock.Manual
	queue  *recordingQueue
}

func newFixture(t *testing.T, repo Repository, ldg ledger.Ledger) *fixture {
	t.Helper()
	if repo == nil {
		repo = NewMemoryRepository()
	}
	if ldg == nil {
		ldg = ledger.NewMemory()
	}
	clk := clock.NewManual(testNow)
	queue := &recordingQueue{}
	calc := schedule.NewCalculator(schedule.DefaultTemplate(), ldg, clk)
	svc := NewService(repo, ldg, calc, clk, Options{
		WriteTimeout: time.Second,
		Releases:     queue,
	})
	return &fixture{svc: svc, repo: repo, ledger: ldg, clock: clk, queue: queue}
}

func mustDate(t *testing.T, s string) schedule.Date {
	t.Helper()
	d, err := schedule.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func booking(t *testing.T, patient, date, label string) BookingRequest {
	t.Helper()
	return BookingRequest{
		DoctorID:  "doc-1",
		PatientID: patient,
		Date:      mustDate(t, date),
		Time:      schedule.MustTimeOfDay(label),
		Details: Details{
			DoctorName: "Dr. Amara Okafor",
			Specialty:  "Cardiology",
			Location:   "Room 4",
		},
	}
}

func isHeld(t *testing.T, l ledger.Ledger, key ledger.Key) bool {
	t.Helper()
	held, err := l.HeldTimes(context.Background(), key.DoctorID, key.Date)
	if err != nil {
		t.Fatalf("held times: %v", err)
	}
	return held[key.Time]
}
