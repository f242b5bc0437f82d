package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

// Postgres keeps reservations in slot_reservations. The primary key on
// (doctor_id, slot_date, slot_minute) is the compare-and-set.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Reserve(ctx context.Context, key Key, holder string) error {
	if err := key.Validate(); err != nil {
		return err
	}

	tag, err := p.pool.Exec(ctx, `
		INSERT INTO slot_reservations (doctor_id, slot_date, slot_minute, holder, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (doctor_id, slot_date, slot_minute) DO NOTHING
	`, key.DoctorID, dateParam(key.Date), int(key.Time), holder)
	if err != nil {
		return fmt.Errorf("%w: reserve %s: %w", ErrUnavailable, key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyHeld
	}
	return nil
}

func (p *Postgres) Release(ctx context.Context, key Key, holder string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM slot_reservations
		WHERE doctor_id = $1
		  AND slot_date = $2
		  AND slot_minute = $3
		  AND ($4 = '' OR holder = $4)
	`, key.DoctorID, dateParam(key.Date), int(key.Time), holder)
	if err != nil {
		return false, fmt.Errorf("%w: release %s: %w", ErrUnavailable, key, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) HeldTimes(ctx context.Context, doctorID string, date schedule.Date) (map[schedule.TimeOfDay]bool, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT slot_minute
		FROM slot_reservations
		WHERE doctor_id = $1 AND slot_date = $2
	`, doctorID, dateParam(date))
	if err != nil {
		return nil, fmt.Errorf("%w: held times: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	held := make(map[schedule.TimeOfDay]bool)
	for rows.Next() {
		var minute int
		if err := rows.Scan(&minute); err != nil {
			return nil, fmt.Errorf("%w: scan held time: %w", ErrUnavailable, err)
		}
		held[schedule.TimeOfDay(minute)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: held times: %w", ErrUnavailable, err)
	}
	return held, nil
}

func dateParam(d schedule.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}
