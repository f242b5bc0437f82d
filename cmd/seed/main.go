package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-scheduling/internal/app"
	"github.com/hackgods/doctor-appointment-scheduling/internal/appointment"
	"github.com/hackgods/doctor-appointment-scheduling/internal/config"
	"github.com/hackgods/doctor-appointment-scheduling/internal/logger"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var reasons = []string{
	"Annual check-up",
	"Follow-up visit",
	"Prescription renewal",
	"Lab results review",
	"Persistent headache",
	"Skin rash",
	"Back pain",
	"Vaccination",
}

type doctor struct {
	ID        string
	Name      string
	Specialty string
	Room      string
}

type seedConfig struct {
	Doctors  int
	Patients int
	Days     int
	PerDay   int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	sc := seedConfig{
		Doctors:  getInt("SEED_DOCTORS", 20),
		Patients: getInt("SEED_PATIENTS", 500),
		Days:     getInt("SEED_DAYS", 14),
		PerDay:   getInt("SEED_PER_DAY", 4),
	}
	log.Info("seed starting",
		zap.Int("doctors", sc.Doctors),
		zap.Int("patients", sc.Patients),
		zap.Int("days", sc.Days),
		zap.Int("per_day", sc.PerDay),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("init", zap.Error(err))
	}
	defer a.Close()

	faker := gofakeit.New(0)
	doctors := makeDoctors(faker, sc.Doctors)
	patients := make([]string, sc.Patients)
	for i := range patients {
		patients[i] = uuid.NewString()
	}

	booked, taken, err := seedAppointments(ctx, a, faker, doctors, patients, sc, log)
	if err != nil {
		log.Fatal("seed appointments", zap.Error(err))
	}

	log.Info("seed complete", zap.Int("booked", booked), zap.Int("already_taken", taken))
}

func makeDoctors(faker *gofakeit.Faker, count int) []doctor {
	doctors := make([]doctor, count)
	for i := range doctors {
		doctors[i] = doctor{
			ID:        fmt.Sprintf("doc-%03d", i+1),
			Name:      "Dr. " + faker.Name(),
			Specialty: faker.RandomString(specialties),
			Room:      fmt.Sprintf("Room %d", faker.Number(1, 40)),
		}
	}
	return doctors
}

func seedAppointments(
	ctx context.Context,
	a *app.App,
	faker *gofakeit.Faker,
	doctors []doctor,
	patients []string,
	sc seedConfig,
	log *zap.Logger,
) (booked, taken int, err error) {
	if len(patients) == 0 {
		return 0, 0, errors.New("no patients to book for")
	}
	start := schedule.DateOf(a.Clock.Now()).AddDays(1)

	for _, doc := range doctors {
		for d := 0; d < sc.Days; d++ {
			date := start.AddDays(d)
			times := a.Template.Times(doc.ID, date.Weekday())
			if len(times) == 0 {
				continue
			}

			for i := 0; i < sc.PerDay; i++ {
				at := times[faker.Number(0, len(times)-1)]
				_, err := a.Service.BookAppointment(ctx, appointment.BookingRequest{
					DoctorID:  doc.ID,
					PatientID: patients[faker.Number(0, len(patients)-1)],
					Date:      date,
					Time:      at,
					Details: appointment.Details{
						DoctorName: doc.Name,
						Specialty:  doc.Specialty,
						Location:   doc.Room,
						Reason:     faker.RandomString(reasons),
					},
				})
				switch {
				case err == nil:
					booked++
				case errors.Is(err, appointment.ErrSlotTaken):
					taken++
				default:
					return booked, taken, fmt.Errorf("book %s %s %s: %w", doc.ID, date, at, err)
				}
			}
		}
		log.Debug("doctor seeded", zap.String("doctor_id", doc.ID))
	}
	return booked, taken, nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
