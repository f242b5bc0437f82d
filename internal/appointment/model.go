package appointment

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-scheduling/internal/ledger"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

type Status string

const (
	StatusBooked    Status = "booked"
	StatusUpcoming  Status = "upcoming"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusBooked, StatusUpcoming, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

var transitions = map[Status][]Status{
	StatusBooked:   {StatusUpcoming, StatusCancelled},
	StatusUpcoming: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// allowedFrom lists the statuses that may move to "to".
func allowedFrom(to Status) []Status {
	var from []Status
	for src, nexts := range transitions {
		for _, n := range nexts {
			if n == to {
				from = append(from, src)
			}
		}
	}
	return from
}

// Appointment is never deleted; cancellation is a status change. Doctor name,
// specialty and avatar are denormalized copies supplied by the caller.
type Appointment struct {
	ID             uuid.UUID
	DoctorID       string
	PatientID      string
	DoctorName     string
	Specialty      string
	ScheduledAt    time.Time
	SlotDate       schedule.Date
	SlotTime       schedule.TimeOfDay
	Location       string
	Status         Status
	AvatarRef      string
	Reason         string
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SlotKey is the ledger key backing this appointment.
func (a Appointment) SlotKey() ledger.Key {
	return ledger.Key{DoctorID: a.DoctorID, Date: a.SlotDate, Time: a.SlotTime}
}

// Holder is the reservation token this appointment owns in the ledger.
func (a Appointment) Holder() string {
	return a.ID.String()
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// ListQuery selects one patient's appointments. Page is zero-based.
type ListQuery struct {
	PatientID string
	Statuses  []Status
	Page      int
	PageSize  int
}

// Ascending reports whether results are ordered oldest first. Only the pure
// upcoming view is; history and mixed views show the most recent first.
func (q ListQuery) Ascending() bool {
	return len(q.Statuses) == 1 && q.Statuses[0] == StatusUpcoming
}

// Offset is the number of rows skipped. It saturates at math.MaxInt instead of
// wrapping, so a huge page always lands past the end.
func (q ListQuery) Offset() int {
	if q.Page <= 0 || q.PageSize <= 0 {
		return 0
	}
	if q.Page > math.MaxInt/q.PageSize {
		return math.MaxInt
	}
	return q.Page * q.PageSize
}

// Page is one window of a patient's appointments.
type Page struct {
	Items       []Appointment
	Page        int
	PageSize    int
	Total       int
	TotalPages  int
	HasNext     bool
	HasPrevious bool
}

func newPage(items []Appointment, page, size, total int) Page {
	if items == nil {
		items = []Appointment{}
	}
	totalPages := 0
	if size > 0 {
		totalPages = (total + size - 1) / size
	}
	return Page{
		Items:       items,
		Page:        page,
		PageSize:    size,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page >= 0 && page < totalPages-1,
		HasPrevious: page > 0,
	}
}
