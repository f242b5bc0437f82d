package appointment

import (
	"math"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusBooked, StatusUpcoming, true},
		{StatusBooked, StatusCancelled, true},
		{StatusUpcoming, StatusCompleted, true},
		{StatusUpcoming, StatusCancelled, true},
		{StatusUpcoming, StatusBooked, false},
		{StatusBooked, StatusCompleted, false},
		{StatusCancelled, StatusUpcoming, false},
		{StatusCancelled, StatusCancelled, false},
		{StatusCompleted, StatusCancelled, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestAllowedFrom(t *testing.T) {
	from := allowedFrom(StatusCancelled)
	if len(from) != 2 {
		t.Fatalf("expected booked and upcoming, got %v", from)
	}
	for _, s := range from {
		if s.Terminal() {
			t.Errorf("terminal status %s listed as a source", s)
		}
	}
	if got := allowedFrom(StatusBooked); len(got) != 0 {
		t.Errorf("nothing moves back to booked, got %v", got)
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := ParseStatus("upcoming"); !ok || s != StatusUpcoming {
		t.Errorf("ParseStatus(upcoming) = %q %v", s, ok)
	}
	if _, ok := ParseStatus("UPCOMING"); ok {
		t.Error("status values are lower case")
	}
}

func TestNewPage(t *testing.T) {
	p := newPage(nil, 0, 5, 0)
	if p.Items == nil || p.TotalPages != 0 || p.HasNext || p.HasPrevious {
		t.Errorf("unexpected empty page: %+v", p)
	}

	p = newPage(make([]Appointment, 5), 0, 5, 11)
	if p.TotalPages != 3 || !p.HasNext || p.HasPrevious {
		t.Errorf("unexpected first page: %+v", p)
	}

	p = newPage(make([]Appointment, 1), 2, 5, 11)
	if p.HasNext || !p.HasPrevious {
		t.Errorf("unexpected last page: %+v", p)
	}
}

func TestListQuery_OffsetSaturates(t *testing.T) {
	tests := []struct {
		page, size int
		want       int
	}{
		{0, 10, 0},
		{3, 10, 30},
		{math.MaxInt64/5 + 1, 5, math.MaxInt},
		{math.MaxInt, 100, math.MaxInt},
		{-1, 10, 0},
	}
	for _, tt := range tests {
		q := ListQuery{Page: tt.page, PageSize: tt.size}
		if got := q.Offset(); got != tt.want {
			t.Errorf("Offset(page=%d, size=%d) = %d, want %d", tt.page, tt.size, got, tt.want)
		}
	}
}

func TestNewPage_HugePageHasNoNext(t *testing.T) {
	p := newPage(nil, math.MaxInt, 5, 7)
	if p.HasNext || !p.HasPrevious || len(p.Items) != 0 {
		t.Errorf("unexpected page at MaxInt: %+v", p)
	}
}
