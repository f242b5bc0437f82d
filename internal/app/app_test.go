package app

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-scheduling/internal/appointment"
	"github.com/hackgods/doctor-appointment-scheduling/internal/config"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

func memoryConfig() config.Config {
	return config.Config{
		LedgerBackend: config.BackendMemory,
		StoreBackend:  config.BackendMemory,
		Location:      time.UTC,
		WriteTimeout:  time.Second,
	}
}

func TestNew_MemoryBackends(t *testing.T) {
	cfg := memoryConfig()
	a, err := New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Pool != nil || a.Redis != nil || a.Queue != nil {
		t.Error("memory backends must not open connections")
	}
	if deps := a.Dependencies(cfg); len(deps) != 0 {
		t.Errorf("expected no readiness deps, got %d", len(deps))
	}

	// A booking far enough ahead to be in the future whatever today is.
	date := schedule.DateOf(time.Now().UTC()).AddDays(7)
	times := a.Template.Times("doc-1", date.Weekday())
	if len(times) == 0 {
		t.Fatal("default template has no hours")
	}
	appt, err := a.Service.BookAppointment(context.Background(), appointment.BookingRequest{
		DoctorID:  "doc-1",
		PatientID: "patient-1",
		Date:      date,
		Time:      times[0],
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if appt.Status != appointment.StatusUpcoming {
		t.Errorf("unexpected status %s", appt.Status)
	}
}

func TestNew_BadTemplatePath(t *testing.T) {
	cfg := memoryConfig()
	cfg.ScheduleFile = "/does/not/exist.yaml"

	if _, err := New(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for a missing template file")
	}
}

func TestReleaseQueueEnabled(t *testing.T) {
	if ReleaseQueueEnabled(memoryConfig()) {
		t.Error("memory ledger has nothing to retry")
	}
	cfg := memoryConfig()
	cfg.LedgerBackend = config.BackendRedis
	if !ReleaseQueueEnabled(cfg) {
		t.Error("redis ledger should retry releases")
	}
}
