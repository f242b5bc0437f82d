package schedule

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "09:30 AM", want: 9*60 + 30},
		{in: "9:30 am", want: 9*60 + 30},
		{in: "12:00 PM", want: 12 * 60},
		{in: "12:00 AM", want: 0},
		{in: "01:00 PM", want: 13 * 60},
		{in: "14:00", want: 14 * 60},
		{in: " 04:30 PM ", want: 16*60 + 30},
		{in: "13:00 PM", wantErr: true},
		{in: "25:00", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidTime) {
				t.Errorf("ParseTimeOfDay(%q): expected ErrInvalidTime, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTimeOfDay_Label(t *testing.T) {
	tests := map[TimeOfDay]string{
		0:          "12:00 AM",
		9*60 + 5:   "09:05 AM",
		12 * 60:    "12:00 PM",
		13*60 + 30: "01:30 PM",
		23*60 + 59: "11:59 PM",
	}
	for in, want := range tests {
		if got := in.Label(); got != want {
			t.Errorf("Label(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestTimeOfDay_JSON(t *testing.T) {
	var payload struct {
		At TimeOfDay `json:"at"`
	}
	if err := json.Unmarshal([]byte(`{"at":"02:30 PM"}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.At != 14*60+30 {
		t.Fatalf("expected 14:30, got %d", payload.At)
	}

	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"at":"02:30 PM"}` {
		t.Errorf("unexpected json %s", out)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-12-20")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Weekday() != time.Friday {
		t.Errorf("2024-12-20 should be a Friday, got %v", d.Weekday())
	}
	if d.String() != "2024-12-20" {
		t.Errorf("round trip mismatch: %s", d)
	}

	for _, bad := range []string{"2024-02-30", "20-12-2024", "", "2024-13-01"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("ParseDate(%q): expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestDate_OrderingAndArithmetic(t *testing.T) {
	d := Date{Year: 2024, Month: time.December, Day: 31}
	next := d.AddDays(1)
	if next != (Date{Year: 2025, Month: time.January, Day: 1}) {
		t.Fatalf("expected 2025-01-01, got %s", next)
	}
	if !d.Before(next) || next.Before(d) || d.Before(d) {
		t.Error("Before is inconsistent")
	}

	loc := time.FixedZone("clinic", -5*60*60)
	at := d.At(MustTimeOfDay("01:30 PM"), loc)
	if at.Hour() != 13 || at.Minute() != 30 || at.Location() != loc {
		t.Errorf("unexpected instant %v", at)
	}
}

func TestDoctorSchedule_Available(t *testing.T) {
	s := DoctorSchedule{TimeSlots: []TimeSlot{
		{Time: 9 * 60},
		{Time: 10 * 60, IsBooked: true},
		{Time: 11 * 60, IsDisabled: true},
		{Time: 13 * 60},
	}}
	got := s.Available()
	if len(got) != 2 || got[0].Time != 9*60 || got[1].Time != 13*60 {
		t.Errorf("unexpected available slots: %+v", got)
	}
}
