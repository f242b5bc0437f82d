package clock

import (
	"testing"
	"time"
)

func TestSystem_ReportsConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("clinic", 3*60*60)
	now := System(loc).Now()
	if now.Location() != loc {
		t.Fatalf("expected location %v, got %v", loc, now.Location())
	}
}

func TestSystem_NilLocationIsUTC(t *testing.T) {
	if got := System(nil).Now().Location(); got != time.UTC {
		t.Fatalf("expected UTC, got %v", got)
	}
}

func TestManual_SetAndAdvance(t *testing.T) {
	start := time.Date(2024, 12, 20, 14, 0, 0, 0, time.UTC)
	m := NewManual(start)

	if !m.Now().Equal(start) {
		t.Fatalf("expected %v, got %v", start, m.Now())
	}

	m.Advance(90 * time.Minute)
	if want := start.Add(90 * time.Minute); !m.Now().Equal(want) {
		t.Errorf("after advance expected %v, got %v", want, m.Now())
	}

	later := start.AddDate(0, 0, 1)
	m.Set(later)
	if !m.Now().Equal(later) {
		t.Errorf("after set expected %v, got %v", later, m.Now())
	}
}
