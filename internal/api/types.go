package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-scheduling/internal/appointment"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

type BookAppointmentRequest struct {
	DoctorID   string `json:"doctor_id"`
	PatientID  string `json:"patient_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	DoctorName string `json:"doctor_name"`
	Specialty  string `json:"specialty"`
	Location   string `json:"location"`
	AvatarRef  string `json:"avatar_ref"`
	Reason     string `json:"reason"`
}

type ReleaseSlotRequest struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Holder string `json:"holder,omitempty"`
}

type ReleaseSlotResponse struct {
	Released bool `json:"released"`
}

type TimeSlotResponse struct {
	Time       string `json:"time"`
	IsBooked   bool   `json:"is_booked"`
	IsDisabled bool   `json:"is_disabled"`
}

type ScheduleResponse struct {
	DoctorID  string             `json:"doctor_id"`
	Date      string             `json:"date"`
	TimeSlots []TimeSlotResponse `json:"time_slots"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    string    `json:"doctor_id"`
	PatientID   string    `json:"patient_id"`
	DoctorName  string    `json:"doctor_name,omitempty"`
	Specialty   string    `json:"specialty,omitempty"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Location    string    `json:"location,omitempty"`
	Status      string    `json:"status"`
	AvatarRef   string    `json:"avatar_ref,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AppointmentPageResponse struct {
	Items       []AppointmentResponse `json:"items"`
	Page        int                   `json:"page"`
	PageSize    int                   `json:"page_size"`
	Total       int                   `json:"total"`
	TotalPages  int                   `json:"total_pages"`
	HasNext     bool                  `json:"has_next"`
	HasPrevious bool                  `json:"has_previous"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		DoctorID:    a.DoctorID,
		PatientID:   a.PatientID,
		DoctorName:  a.DoctorName,
		Specialty:   a.Specialty,
		Date:        a.SlotDate.String(),
		Time:        a.SlotTime.Label(),
		ScheduledAt: a.ScheduledAt,
		Location:    a.Location,
		Status:      string(a.Status),
		AvatarRef:   a.AvatarRef,
		Reason:      a.Reason,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func toPageResponse(p appointment.Page) AppointmentPageResponse {
	items := make([]AppointmentResponse, 0, len(p.Items))
	for i := range p.Items {
		items = append(items, toAppointmentResponse(&p.Items[i]))
	}
	return AppointmentPageResponse{
		Items:       items,
		Page:        p.Page,
		PageSize:    p.PageSize,
		Total:       p.Total,
		TotalPages:  p.TotalPages,
		HasNext:     p.HasNext,
		HasPrevious: p.HasPrevious,
	}
}

func toScheduleResponse(s schedule.DoctorSchedule) ScheduleResponse {
	slots := make([]TimeSlotResponse, 0, len(s.TimeSlots))
	for _, ts := range s.TimeSlots {
		slots = append(slots, TimeSlotResponse{
			Time:       ts.Time.Label(),
			IsBooked:   ts.IsBooked,
			IsDisabled: ts.IsDisabled,
		})
	}
	return ScheduleResponse{
		DoctorID:  s.DoctorID,
		Date:      s.Date.String(),
		TimeSlots: slots,
	}
}
