package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-scheduling/internal/appointment"
	"github.com/hackgods/doctor-appointment-scheduling/internal/ledger"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

const idempotencyHeader = "Idempotency-Key"

// AppointmentService is the part of appointment.Service the HTTP layer uses.
type AppointmentService interface {
	GetSchedule(ctx context.Context, doctorID string, date schedule.Date) (schedule.DoctorSchedule, error)
	BookAppointment(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, q appointment.ListQuery) (appointment.Page, error)
	ListUpcoming(ctx context.Context, patientID string, page, size int) (appointment.Page, error)
	ListHistory(ctx context.Context, patientID string, page, size int) (appointment.Page, error)
	ReleaseSlot(ctx context.Context, key ledger.Key, holder string) (bool, error)
}

func getScheduleHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID := chi.URLParam(r, "doctorID")

		date, err := schedule.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		sched, err := svc.GetSchedule(r.Context(), doctorID, date)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toScheduleResponse(sched))
	}
}

func releaseSlotHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReleaseSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		date, err := schedule.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		t, err := schedule.ParseTimeOfDay(req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "time must look like 09:30 AM")
			return
		}

		key := ledger.Key{DoctorID: chi.URLParam(r, "doctorID"), Date: date, Time: t}
		released, err := svc.ReleaseSlot(r.Context(), key, req.Holder)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, ReleaseSlotResponse{Released: released})
	}
}

func bookAppointmentHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		date, err := schedule.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		t, err := schedule.ParseTimeOfDay(req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "time must look like 09:30 AM")
			return
		}

		appt, err := svc.BookAppointment(r.Context(), appointment.BookingRequest{
			DoctorID:  strings.TrimSpace(req.DoctorID),
			PatientID: strings.TrimSpace(req.PatientID),
			Date:      date,
			Time:      t,
			Details: appointment.Details{
				DoctorName: req.DoctorName,
				Specialty:  req.Specialty,
				Location:   req.Location,
				AvatarRef:  req.AvatarRef,
				Reason:     req.Reason,
			},
			IdempotencyKey: r.Header.Get(idempotencyHeader),
		})
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseAppointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseAppointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, size, ok := parsePaging(w, r)
		if !ok {
			return
		}

		var statuses []appointment.Status
		if raw := r.URL.Query().Get("status"); raw != "" {
			for _, part := range strings.Split(raw, ",") {
				st, valid := appointment.ParseStatus(strings.ToLower(strings.TrimSpace(part)))
				if !valid {
					writeError(w, http.StatusBadRequest, "invalid_status", "unknown status "+part)
					return
				}
				statuses = append(statuses, st)
			}
		}

		result, err := svc.ListAppointments(r.Context(), appointment.ListQuery{
			PatientID: r.URL.Query().Get("patient_id"),
			Statuses:  statuses,
			Page:      page,
			PageSize:  size,
		})
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toPageResponse(result))
	}
}

type patientListFunc func(ctx context.Context, patientID string, page, size int) (appointment.Page, error)

func patientListHandler(list patientListFunc, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, size, ok := parsePaging(w, r)
		if !ok {
			return
		}

		result, err := list(r.Context(), chi.URLParam(r, "patientID"), page, size)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toPageResponse(result))
	}
}

func parseAppointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePaging reads page (zero-based) and size. Absent values fall back to the
// service defaults.
func parsePaging(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	q := r.URL.Query()
	page, size := 0, 0

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_page", "page must be an integer")
			return 0, 0, false
		}
		page = n
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_page", "size must be an integer")
			return 0, 0, false
		}
		size = n
	}
	return page, size, true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, appointment.ErrSlotNotOffered):
		writeError(w, http.StatusBadRequest, "slot_not_offered", err.Error())
	case errors.Is(err, appointment.ErrSlotInPast):
		writeError(w, http.StatusBadRequest, "slot_in_past", err.Error())
	case errors.Is(err, appointment.ErrInvalidPage):
		writeError(w, http.StatusBadRequest, "invalid_page", err.Error())
	case errors.Is(err, appointment.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrIdempotencyConflict):
		writeError(w, http.StatusUnprocessableEntity, "idempotency_key_reused", err.Error())
	case errors.Is(err, appointment.ErrStoreFailure):
		logFailure(r, log, err)
		writeError(w, http.StatusServiceUnavailable, "store_failure", "appointment could not be stored, please retry")
	case errors.Is(err, appointment.ErrStorageUnavailable),
		errors.Is(err, ledger.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		logFailure(r, log, err)
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "storage temporarily unavailable, please retry")
	default:
		logFailure(r, log, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func logFailure(r *http.Request, log *zap.Logger, err error) {
	log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Error(err),
	)
}
