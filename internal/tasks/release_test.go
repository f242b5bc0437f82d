package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-scheduling/internal/ledger"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

type fakeReleaser struct {
	calls  []ledger.Key
	holder string
	err    error
}

func (f *fakeReleaser) ReleaseSlot(_ context.Context, key ledger.Key, holder string) (bool, error) {
	f.calls = append(f.calls, key)
	f.holder = holder
	if f.err != nil {
		return false, f.err
	}
	return true, nil
}

func testKey(t *testing.T) ledger.Key {
	t.Helper()
	date, err := schedule.ParseDate("2024-12-20")
	if err != nil {
		t.Fatal(err)
	}
	return ledger.Key{DoctorID: "doc-1", Date: date, Time: schedule.MustTimeOfDay("10:00 AM")}
}

func TestHandleSlotRelease(t *testing.T) {
	key := testKey(t)
	task, opts, err := NewSlotReleaseTask(key, "appt-1", 3)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TypeSlotRelease || len(opts) == 0 {
		t.Fatalf("unexpected task %s with %d opts", task.Type(), len(opts))
	}

	r := &fakeReleaser{}
	if err := HandleSlotRelease(r, zap.NewNop())(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(r.calls) != 1 || r.calls[0] != key || r.holder != "appt-1" {
		t.Errorf("unexpected release call: %v holder=%q", r.calls, r.holder)
	}
}

func TestHandleSlotRelease_RetriesOnFailure(t *testing.T) {
	task, _, err := NewSlotReleaseTask(testKey(t), "appt-1", 3)
	if err != nil {
		t.Fatal(err)
	}
	r := &fakeReleaser{err: ledger.ErrUnavailable}

	err = HandleSlotRelease(r, zap.NewNop())(context.Background(), task)
	if !errors.Is(err, ledger.ErrUnavailable) {
		t.Fatalf("expected the ledger error to be returned for retry, got %v", err)
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Error("transient failures must be retried")
	}
}

func TestHandleSlotRelease_BadPayloadSkipsRetry(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":  "{",
		"bad date":  `{"doctor_id":"doc-1","date":"20-12-2024","time":"10:00 AM","holder":"x"}`,
		"no doctor": `{"date":"2024-12-20","time":"10:00 AM","holder":"x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			r := &fakeReleaser{}
			err := HandleSlotRelease(r, zap.NewNop())(context.Background(), asynq.NewTask(TypeSlotRelease, []byte(payload)))
			if !errors.Is(err, asynq.SkipRetry) {
				t.Fatalf("expected SkipRetry, got %v", err)
			}
			if len(r.calls) != 0 {
				t.Error("release must not run for a bad payload")
			}
		})
	}
}
