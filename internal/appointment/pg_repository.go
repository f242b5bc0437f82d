package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, doctor_id, patient_id, doctor_name, specialty, scheduled_at,
	slot_date, slot_minute, location, status, avatar_ref, reason,
	idempotency_key, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a        Appointment
		slotDate time.Time
		minute   int
		idemKey  *string
	)

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.DoctorName,
		&a.Specialty,
		&a.ScheduledAt,
		&slotDate,
		&minute,
		&a.Location,
		&a.Status,
		&a.AvatarRef,
		&a.Reason,
		&idemKey,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("%w: scan appointment: %w", ErrStorageUnavailable, err)
	}

	a.SlotDate = schedule.DateOf(slotDate.UTC())
	a.SlotTime = schedule.TimeOfDay(minute)
	if idemKey != nil {
		a.IdempotencyKey = *idemKey
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate appointments: %w", ErrStorageUnavailable, err)
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	status := a.Status
	if status == "" {
		status = StatusBooked
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, doctor_name, specialty, scheduled_at,
			slot_date, slot_minute, location, status, avatar_ref, reason,
			idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		RETURNING `+appointmentColumns,
		id, a.DoctorID, a.PatientID, a.DoctorName, a.Specialty, a.ScheduledAt,
		dateParam(a.SlotDate), int(a.SlotTime), a.Location, status, a.AvatarRef, a.Reason,
		nullableString(a.IdempotencyKey),
	)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "appointments_idempotency_key_key" {
			return nil, ErrDuplicateIdempotencyKey
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetByIdempotencyKey(ctx context.Context, key string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE idempotency_key = $1
	`, key)
	return scanAppointment(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, q ListQuery) ([]Appointment, int, error) {
	statuses := make([]string, len(q.Statuses))
	for i, s := range q.Statuses {
		statuses[i] = string(s)
	}

	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE patient_id = $1
		  AND (cardinality($2::text[]) = 0 OR status = ANY($2))
	`, q.PatientID, statuses).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: count appointments: %w", ErrStorageUnavailable, err)
	}

	if offset := q.Offset(); offset < 0 || offset >= total {
		return []Appointment{}, total, nil
	}

	order := "scheduled_at DESC, id DESC"
	if q.Ascending() {
		order = "scheduled_at ASC, id ASC"
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		  AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY `+order+`
		LIMIT $3 OFFSET $4
	`, q.PatientID, statuses, q.PageSize, q.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list appointments: %w", ErrStorageUnavailable, err)
	}

	items, err := collectAppointments(rows)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []Appointment{}
	}
	return items, total, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	from := allowedFrom(to)
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+appointmentColumns,
		id, to, fromStrs)

	updated, err := scanAppointment(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	// No row matched: either the id is unknown or its status forbids the move.
	var current Status
	err = r.pool.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load appointment status: %w", ErrStorageUnavailable, err)
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
}

func (r *PgRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'upcoming'
		  AND scheduled_at <= $1
		ORDER BY scheduled_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list due appointments: %w", ErrStorageUnavailable, err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func dateParam(d schedule.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
