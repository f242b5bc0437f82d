package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/doctor-appointment-scheduling/internal/ledger"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

// SlotLedger stores one string key per held slot (value = holder) plus a per-day
// set of held minutes so a day's schedule is a single SMEMBERS.
type SlotLedger struct {
	client    *redis.Client
	retention time.Duration
}

// NewSlotLedger creates a ledger whose keys expire retention after the end of the
// slot's day. A zero retention keeps keys forever.
func NewSlotLedger(client *redis.Client, retention time.Duration) *SlotLedger {
	return &SlotLedger{
		client:    client,
		retention: retention,
	}
}

func slotKey(k ledger.Key) string {
	return fmt.Sprintf("slot:%s:%s:%d", k.DoctorID, k.Date, int(k.Time))
}

func dayKey(doctorID string, date schedule.Date) string {
	return fmt.Sprintf("slots:%s:%s", doctorID, date)
}

// SET NX and the index update happen in one script so a hold is never visible
// in one structure without the other.
var reserveScript = redis.NewScript(`
if not redis.call("SET", KEYS[1], ARGV[1], "NX") then
  return 0
end
redis.call("SADD", KEYS[2], ARGV[2])
local expireAt = tonumber(ARGV[3])
if expireAt > 0 then
  redis.call("PEXPIREAT", KEYS[1], expireAt)
  redis.call("PEXPIREAT", KEYS[2], expireAt)
end
return 1
`)

var releaseScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if not val then
  return 0
end
if ARGV[1] ~= "" and val ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[2])
return 1
`)

func (l *SlotLedger) Reserve(ctx context.Context, key ledger.Key, holder string) error {
	if err := key.Validate(); err != nil {
		return err
	}

	keys := []string{slotKey(key), dayKey(key.DoctorID, key.Date)}
	n, err := reserveScript.Run(ctx, l.client, keys, holder, int(key.Time), l.expireAt(key.Date)).Int()
	if err != nil {
		return fmt.Errorf("%w: reserve %s: %w", ledger.ErrUnavailable, key, err)
	}
	if n == 0 {
		return ledger.ErrAlreadyHeld
	}
	return nil
}

func (l *SlotLedger) Release(ctx context.Context, key ledger.Key, holder string) (bool, error) {
	keys := []string{slotKey(key), dayKey(key.DoctorID, key.Date)}
	n, err := releaseScript.Run(ctx, l.client, keys, holder, int(key.Time)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("%w: release %s: %w", ledger.ErrUnavailable, key, err)
	}
	return n == 1, nil
}

func (l *SlotLedger) HeldTimes(ctx context.Context, doctorID string, date schedule.Date) (map[schedule.TimeOfDay]bool, error) {
	members, err := l.client.SMembers(ctx, dayKey(doctorID, date)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: held times: %w", ledger.ErrUnavailable, err)
	}

	held := make(map[schedule.TimeOfDay]bool, len(members))
	for _, m := range members {
		minute, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		held[schedule.TimeOfDay(minute)] = true
	}
	return held, nil
}

func (l *SlotLedger) expireAt(date schedule.Date) int64 {
	if l.retention <= 0 {
		return 0
	}
	endOfDay := date.AddDays(1).At(0, time.UTC)
	return endOfDay.Add(l.retention).UnixMilli()
}
