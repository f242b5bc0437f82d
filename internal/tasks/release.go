package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-scheduling/internal/ledger"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

const TypeSlotRelease = "slot:release"

type SlotReleasePayload struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Holder   string `json:"holder"`
}

func (p SlotReleasePayload) Key() (ledger.Key, error) {
	date, err := schedule.ParseDate(p.Date)
	if err != nil {
		return ledger.Key{}, err
	}
	t, err := schedule.ParseTimeOfDay(p.Time)
	if err != nil {
		return ledger.Key{}, err
	}
	key := ledger.Key{DoctorID: p.DoctorID, Date: date, Time: t}
	return key, key.Validate()
}

func NewSlotReleaseTask(key ledger.Key, holder string, maxRetry int) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(SlotReleasePayload{
		DoctorID: key.DoctorID,
		Date:     key.Date.String(),
		Time:     key.Time.Label(),
		Holder:   holder,
	})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSlotRelease, b)
	opts := []asynq.Option{
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(10 * time.Second),
		// One pending retry per reservation.
		asynq.TaskID(fmt.Sprintf("release:%s:%s", key, holder)),
	}

	return task, opts, nil
}

// ReleaseQueue hands failed slot releases to the worker for retry.
type ReleaseQueue struct {
	client   *asynq.Client
	maxRetry int
}

func NewReleaseQueue(client *asynq.Client, maxRetry int) *ReleaseQueue {
	return &ReleaseQueue{client: client, maxRetry: maxRetry}
}

func (q *ReleaseQueue) EnqueueRelease(ctx context.Context, key ledger.Key, holder string) error {
	task, opts, err := NewSlotReleaseTask(key, holder, q.maxRetry)
	if err != nil {
		return fmt.Errorf("build release task: %w", err)
	}
	if _, err := q.client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue release %s: %w", key, err)
	}
	return nil
}

// Releaser is the part of the appointment service the handler needs.
type Releaser interface {
	ReleaseSlot(ctx context.Context, key ledger.Key, holder string) (bool, error)
}

// HandleSlotRelease retries a holder-guarded release. A hold that is already
// gone counts as done.
func HandleSlotRelease(r Releaser, log *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p SlotReleasePayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Error("invalid slot release payload", zap.Error(err))
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
		key, err := p.Key()
		if err != nil {
			log.Error("invalid slot release key", zap.Any("payload", p), zap.Error(err))
			return fmt.Errorf("payload key: %v: %w", err, asynq.SkipRetry)
		}

		released, err := r.ReleaseSlot(ctx, key, p.Holder)
		if err != nil {
			log.Warn("slot release retry failed", zap.String("slot", key.String()), zap.Error(err))
			return err
		}

		log.Info("slot release retried",
			zap.String("slot", key.String()),
			zap.String("holder", p.Holder),
			zap.Bool("released", released),
		)
		return nil
	}
}
