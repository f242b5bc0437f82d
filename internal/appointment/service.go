package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-scheduling/internal/clock"
	"github.com/hackgods/doctor-appointment-scheduling/internal/ledger"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventSlotReleaseFailed    = "SLOT_RELEASE_FAILED"
	EventSlotOrphaned         = "SLOT_ORPHANED"
)

const (
	DefaultPageSize     = 10
	MaxPageSize         = 100
	defaultWriteTimeout = 5 * time.Second
	completionBatch     = 500
)

// ReleaseQueue retries slot releases that failed during cancellation.
type ReleaseQueue interface {
	EnqueueRelease(ctx context.Context, key ledger.Key, holder string) error
}

// Details are the denormalized directory fields copied onto the appointment.
type Details struct {
	DoctorName string
	Specialty  string
	Location   string
	AvatarRef  string
	Reason     string
}

type BookingRequest struct {
	DoctorID  string
	PatientID string
	Date      schedule.Date
	Time      schedule.TimeOfDay
	Details   Details
	// IdempotencyKey deduplicates retries of the same booking attempt.
	IdempotencyKey string
}

func (r BookingRequest) slotKey() ledger.Key {
	return ledger.Key{DoctorID: r.DoctorID, Date: r.Date, Time: r.Time}
}

type Options struct {
	// WriteTimeout bounds the part of a booking or cancellation that runs
	// after the caller's context has been detached.
	WriteTimeout time.Duration
	Releases     ReleaseQueue
	Logger       *zap.Logger
}

// Service is the only writer that touches both the slot ledger and the
// appointment store.
type Service struct {
	repo         Repository
	ledger       ledger.Ledger
	calc         *schedule.Calculator
	clock        clock.Clock
	releases     ReleaseQueue
	log          *zap.Logger
	writeTimeout time.Duration
}

func NewService(repo Repository, ldg ledger.Ledger, calc *schedule.Calculator, clk clock.Clock, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	wt := opts.WriteTimeout
	if wt <= 0 {
		wt = defaultWriteTimeout
	}
	return &Service{
		repo:         repo,
		ledger:       ldg,
		calc:         calc,
		clock:        clk,
		releases:     opts.Releases,
		log:          log,
		writeTimeout: wt,
	}
}

// GetSchedule returns the doctor's slots for date with holds and past times merged in.
func (s *Service) GetSchedule(ctx context.Context, doctorID string, date schedule.Date) (schedule.DoctorSchedule, error) {
	doctorID = schedule.NormalizeDoctorID(doctorID)
	if doctorID == "" {
		return schedule.DoctorSchedule{}, ErrMissingDoctorID
	}
	if date.IsZero() {
		return schedule.DoctorSchedule{}, ErrInvalidDate
	}

	sched, err := s.calc.ComputeSlots(ctx, doctorID, date)
	if err != nil {
		return schedule.DoctorSchedule{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return sched, nil
}

// BookAppointment reserves the slot, then records an Upcoming appointment.
// Doctor IDs are case-insensitive and stored in normalized form.
// If the record cannot be written the reservation is released again, unless
// the store's state cannot be determined, in which case the hold is kept and
// logged as orphaned.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	req.DoctorID = schedule.NormalizeDoctorID(req.DoctorID)
	if err := s.validateBooking(req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.findByIdempotencyKey(ctx, req)
		if err != nil || existing != nil {
			return existing, err
		}
	}

	id := uuid.New()
	key := req.slotKey()

	if err := s.ledger.Reserve(ctx, key, id.String()); err != nil {
		if errors.Is(err, ledger.ErrAlreadyHeld) {
			// A concurrent retry with the same key may have won the slot.
			if req.IdempotencyKey != "" {
				if existing, findErr := s.findByIdempotencyKey(ctx, req); findErr == nil && existing != nil {
					return existing, nil
				}
			}
			return nil, ErrSlotTaken
		}
		if errors.Is(err, ledger.ErrInvalidKey) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		// The reserve may still have landed.
		s.releaseHold(ctx, key, id, "reserve_failed")
		return nil, fmt.Errorf("%w: reserve slot: %w", ErrStorageUnavailable, err)
	}

	// From here on the compound operation must finish even if the caller goes away.
	writeCtx, cancel := s.detached(ctx)
	defer cancel()

	now := s.clock.Now()
	appt := &Appointment{
		ID:             id,
		DoctorID:       req.DoctorID,
		PatientID:      req.PatientID,
		DoctorName:     req.Details.DoctorName,
		Specialty:      req.Details.Specialty,
		ScheduledAt:    req.Date.At(req.Time, now.Location()),
		SlotDate:       req.Date,
		SlotTime:       req.Time,
		Location:       req.Details.Location,
		Status:         StatusUpcoming,
		AvatarRef:      req.Details.AvatarRef,
		Reason:         req.Details.Reason,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
	}

	created, err := s.repo.Create(writeCtx, appt)
	if err != nil {
		return s.recoverCreate(ctx, req, appt, err)
	}

	s.logEvent(writeCtx, created.ID, EventAppointmentBooked, map[string]any{
		"doctor_id":  created.DoctorID,
		"patient_id": created.PatientID,
		"date":       created.SlotDate.String(),
		"time":       created.SlotTime.Label(),
	})

	s.log.Info("appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("slot", key.String()),
		zap.String("patient_id", created.PatientID),
	)

	return created, nil
}

func (s *Service) recoverCreate(ctx context.Context, req BookingRequest, appt *Appointment, createErr error) (*Appointment, error) {
	key := appt.SlotKey()

	checkCtx, cancel := s.detached(ctx)
	defer cancel()

	if errors.Is(createErr, ErrDuplicateIdempotencyKey) {
		s.releaseHold(ctx, key, appt.ID, "duplicate_idempotency_key")
		existing, err := s.findByIdempotencyKey(checkCtx, req)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, createErr)
	}

	existing, err := s.repo.GetByID(checkCtx, appt.ID)
	switch {
	case err == nil:
		s.log.Warn("create reported failure but appointment exists",
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(createErr),
		)
		return existing, nil

	case errors.Is(err, ErrAppointmentNotFound):
		s.releaseHold(ctx, key, appt.ID, "create_failed")
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, createErr)

	default:
		s.log.Error("slot held without a confirmed appointment",
			zap.String("slot", key.String()),
			zap.String("holder", appt.ID.String()),
			zap.NamedError("create_error", createErr),
			zap.NamedError("lookup_error", err),
		)
		s.logEvent(checkCtx, appt.ID, EventSlotOrphaned, map[string]any{
			"slot":   key.String(),
			"reason": err.Error(),
		})
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, createErr)
	}
}

// CancelAppointment marks the appointment Cancelled and then frees its slot.
// The status change is authoritative: a failed release is logged and queued
// for retry but never reported to the caller.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	if id == uuid.Nil {
		return nil, ErrAppointmentNotFound
	}

	writeCtx, cancel := s.detached(ctx)
	defer cancel()

	appt, err := s.repo.UpdateStatus(writeCtx, id, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	key := appt.SlotKey()
	released, relErr := s.ledger.Release(writeCtx, key, appt.Holder())
	switch {
	case relErr != nil:
		s.log.Warn("slot release failed after cancellation",
			zap.String("appointment_id", appt.ID.String()),
			zap.String("slot", key.String()),
			zap.Error(relErr),
		)
		s.logEvent(writeCtx, appt.ID, EventSlotReleaseFailed, map[string]any{
			"slot":  key.String(),
			"error": relErr.Error(),
		})
		s.enqueueRelease(writeCtx, key, appt.Holder())
	case !released:
		s.log.Info("slot was not held at cancellation",
			zap.String("appointment_id", appt.ID.String()),
			zap.String("slot", key.String()),
		)
	}

	s.logEvent(writeCtx, appt.ID, EventAppointmentCancelled, map[string]any{
		"slot":          key.String(),
		"slot_released": released,
	})

	return appt, nil
}

// ReleaseSlot frees a reservation outside the cancel flow. An empty holder
// releases unconditionally.
func (s *Service) ReleaseSlot(ctx context.Context, key ledger.Key, holder string) (bool, error) {
	key.DoctorID = schedule.NormalizeDoctorID(key.DoctorID)
	if err := key.Validate(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	released, err := s.ledger.Release(ctx, key, holder)
	if err != nil {
		return false, fmt.Errorf("%w: release slot: %w", ErrStorageUnavailable, err)
	}

	s.log.Info("slot released",
		zap.String("slot", key.String()),
		zap.String("holder", holder),
		zap.Bool("released", released),
	)
	return released, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListAppointments returns one page of a patient's appointments. A zero
// PageSize means DefaultPageSize.
func (s *Service) ListAppointments(ctx context.Context, q ListQuery) (Page, error) {
	if q.PatientID == "" {
		return Page{}, ErrMissingPatientID
	}
	if q.PageSize == 0 {
		q.PageSize = DefaultPageSize
	}
	if q.Page < 0 || q.PageSize < 1 || q.PageSize > MaxPageSize {
		return Page{}, ErrInvalidPage
	}

	items, total, err := s.repo.ListByPatient(ctx, q)
	if err != nil {
		return Page{}, fmt.Errorf("list appointments by patient: %w", err)
	}
	return newPage(items, q.Page, q.PageSize, total), nil
}

func (s *Service) ListUpcoming(ctx context.Context, patientID string, page, size int) (Page, error) {
	return s.ListAppointments(ctx, ListQuery{
		PatientID: patientID,
		Statuses:  []Status{StatusUpcoming},
		Page:      page,
		PageSize:  size,
	})
}

func (s *Service) ListHistory(ctx context.Context, patientID string, page, size int) (Page, error) {
	return s.ListAppointments(ctx, ListQuery{
		PatientID: patientID,
		Statuses:  []Status{StatusCompleted, StatusCancelled},
		Page:      page,
		PageSize:  size,
	})
}

// CompleteElapsedAppointments promotes Upcoming appointments whose time has
// passed to Completed. Intended to be called by the worker periodically.
func (s *Service) CompleteElapsedAppointments(ctx context.Context) (int, error) {
	due, err := s.repo.ListDue(ctx, s.clock.Now(), completionBatch)
	if err != nil {
		return 0, fmt.Errorf("find elapsed appointments: %w", err)
	}

	completed := 0
	for _, appt := range due {
		if _, err := s.repo.UpdateStatus(ctx, appt.ID, StatusCompleted); err != nil {
			// Cancelled in the meantime.
			if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			s.log.Error("failed to complete appointment", zap.String("appointment_id", appt.ID.String()), zap.Error(err))
			continue
		}
		completed++
		s.logEvent(ctx, appt.ID, EventAppointmentCompleted, map[string]any{
			"scheduled_at": appt.ScheduledAt,
		})
	}

	return completed, nil
}

func (s *Service) validateBooking(req BookingRequest) error {
	switch {
	case req.DoctorID == "":
		return ErrMissingDoctorID
	case req.PatientID == "":
		return ErrMissingPatientID
	case req.Date.IsZero():
		return ErrInvalidDate
	case !req.Time.Valid():
		return ErrInvalidTime
	case !s.calc.Offers(req.DoctorID, req.Date, req.Time):
		return ErrSlotNotOffered
	case s.calc.IsPast(req.Date, req.Time):
		return ErrSlotInPast
	}
	return nil
}

// findByIdempotencyKey returns nil, nil when the key has not been used yet.
func (s *Service) findByIdempotencyKey(ctx context.Context, req BookingRequest) (*Appointment, error) {
	existing, err := s.repo.GetByIdempotencyKey(ctx, req.IdempotencyKey)
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("check idempotency key: %w", err)
	}

	if existing.SlotKey() != req.slotKey() || existing.PatientID != req.PatientID {
		return nil, ErrIdempotencyConflict
	}
	return existing, nil
}

// releaseHold is the compensating release for a reservation this service just
// made. It only removes the hold if it still belongs to holder.
func (s *Service) releaseHold(ctx context.Context, key ledger.Key, holder uuid.UUID, reason string) {
	relCtx, cancel := s.detached(ctx)
	defer cancel()

	released, err := s.ledger.Release(relCtx, key, holder.String())
	if err != nil {
		s.log.Error("compensating release failed",
			zap.String("slot", key.String()),
			zap.String("holder", holder.String()),
			zap.String("reason", reason),
			zap.Error(err),
		)
		s.enqueueRelease(relCtx, key, holder.String())
		return
	}
	s.log.Debug("compensating release",
		zap.String("slot", key.String()),
		zap.String("reason", reason),
		zap.Bool("released", released),
	)
}

func (s *Service) enqueueRelease(ctx context.Context, key ledger.Key, holder string) {
	if s.releases == nil {
		return
	}
	if err := s.releases.EnqueueRelease(ctx, key, holder); err != nil {
		s.log.Error("failed to enqueue slot release",
			zap.String("slot", key.String()),
			zap.String("holder", holder),
			zap.Error(err),
		)
	}
}

// detached keeps the caller's values but not its cancellation, bounded by the
// write timeout.
func (s *Service) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("failed to insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}
