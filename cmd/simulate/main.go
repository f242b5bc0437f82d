package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-scheduling/internal/logger"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	ReadRatio    float64
	Doctors      int
	Patients     int
	StartDate    schedule.Date
	Days         int
}

type slotRef struct {
	DoctorID string
	Date     string
	Time     string
}

type DataPool struct {
	Patients     []string
	Slots        []slotRef
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking      OperationMetrics
	Cancel       OperationMetrics
	Schedule     OperationMetrics
	ReadByID     OperationMetrics
	ListUpcoming OperationMetrics
	ListHistory  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     *zap.Logger
	metrics Metrics
}

func main() {
	log, err := logger.New(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}
	log.Info("simulator starting",
		zap.String("api", cfg.APIBaseURL),
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("cancel", cfg.CancelRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dataPool, err := sim.loadDataPool(ctx)
	if err != nil {
		log.Fatal("load data pool", zap.Error(err))
	}
	sim.pool = dataPool
	log.Info("loaded", zap.Int("patients", len(dataPool.Patients)), zap.Int("open_slots", len(dataPool.Slots)))

	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, error) {
	cfg := SimConfig{
		APIBaseURL:   strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.4),
		Doctors:      getInt("SIM_DOCTORS", 10),
		Patients:     getInt("SIM_PATIENTS", 200),
		Days:         getInt("SIM_DAYS", 7),
	}

	cfg.StartDate = schedule.DateOf(time.Now()).AddDays(1)
	if v := os.Getenv("SIM_DATE"); v != "" {
		d, err := schedule.ParseDate(v)
		if err != nil {
			return cfg, fmt.Errorf("SIM_DATE: %w", err)
		}
		cfg.StartDate = d
	}

	if cfg.Workers <= 0 {
		return cfg, errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return cfg, errors.New("SIM_DURATION must be > 0")
	}
	if cfg.Doctors <= 0 || cfg.Patients <= 0 || cfg.Days <= 0 {
		return cfg, errors.New("SIM_DOCTORS, SIM_PATIENTS and SIM_DAYS must be > 0")
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg, nil
}

func doctorID(i int) string {
	return fmt.Sprintf("doc-%03d", i+1)
}

// loadDataPool asks the API for every doctor's schedule and keeps the slots
// that are still open.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	dataPool := &DataPool{}
	for i := 0; i < s.config.Patients; i++ {
		dataPool.Patients = append(dataPool.Patients, uuid.NewString())
	}

	for i := 0; i < s.config.Doctors; i++ {
		doc := doctorID(i)
		for d := 0; d < s.config.Days; d++ {
			date := s.config.StartDate.AddDays(d).String()
			sched, err := s.fetchSchedule(ctx, doc, date)
			if err != nil {
				return nil, fmt.Errorf("schedule %s %s: %w", doc, date, err)
			}
			for _, slot := range sched.TimeSlots {
				if slot.IsBooked || slot.IsDisabled {
					continue
				}
				dataPool.Slots = append(dataPool.Slots, slotRef{DoctorID: doc, Date: date, Time: slot.Time})
			}
		}
	}

	if len(dataPool.Slots) == 0 {
		return nil, errors.New("no open slots found")
	}
	return dataPool, nil
}

type scheduleResponse struct {
	TimeSlots []struct {
		Time       string `json:"time"`
		IsBooked   bool   `json:"is_booked"`
		IsDisabled bool   `json:"is_disabled"`
	} `json:"time_slots"`
}

func (s *Simulator) fetchSchedule(ctx context.Context, doctor, date string) (*scheduleResponse, error) {
	u := fmt.Sprintf("%s/doctors/%s/schedule?date=%s", s.config.APIBaseURL, url.PathEscape(doctor), url.QueryEscape(date))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var out scheduleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info("starting simulation", zap.Duration("duration", s.config.Duration), zap.Int("workers", s.config.Workers))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			if r < s.config.BookingRatio {
				s.doBooking(ctx, rng)
			} else if r < s.config.BookingRatio+s.config.CancelRatio {
				s.doCancel(ctx, rng)
			} else {
				switch rng.Intn(4) {
				case 0:
					s.doSchedule(ctx, rng)
				case 1:
					s.doReadByID(ctx, rng)
				case 2:
					s.doPatientList(ctx, rng, "upcoming", &s.metrics.ListUpcoming)
				case 3:
					s.doPatientList(ctx, rng, "history", &s.metrics.ListHistory)
				}
			}
		}
	}
}

// do sends the request and reports the status code, or 0 when the request
// never completed.
func (s *Simulator) do(req *http.Request, decode any) int {
	resp, err := s.client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	if decode != nil && resp.StatusCode < 300 {
		_ = json.NewDecoder(resp.Body).Decode(decode)
	}
	return resp.StatusCode
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	body, _ := json.Marshal(map[string]string{
		"doctor_id":  slot.DoctorID,
		"patient_id": patientID,
		"date":       slot.Date,
		"time":       slot.Time,
		"reason":     "load test",
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	code := s.do(req, &created)
	latency := time.Since(start)

	if code == http.StatusCreated && created.ID != uuid.Nil {
		s.pool.AddAppointment(created.ID)
	}
	s.metrics.Booking.Record(latency, code == http.StatusCreated, code == http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/appointments/%s/cancel", s.config.APIBaseURL, apptID), nil)
	code := s.do(req, nil)

	// Cancelling twice is a 409, which counts as a conflict rather than an error.
	s.metrics.Cancel.Record(time.Since(start), code == http.StatusOK, code == http.StatusConflict)
}

func (s *Simulator) doSchedule(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	start := time.Now()
	_, err := s.fetchSchedule(ctx, slot.DoctorID, slot.Date)
	s.metrics.Schedule.Record(time.Since(start), err == nil, false)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/appointments/%s", s.config.APIBaseURL, apptID), nil)
	code := s.do(req, nil)
	s.metrics.ReadByID.Record(time.Since(start), code == http.StatusOK, false)
}

func (s *Simulator) doPatientList(ctx context.Context, rng *rand.Rand, view string, om *OperationMetrics) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/patients/%s/appointments/%s?page=0&size=20", s.config.APIBaseURL, patientID, view), nil)
	code := s.do(req, nil)
	om.Record(time.Since(start), code == http.StatusOK, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Open slots at start: %d\n", len(s.pool.Slots))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Schedule", &s.metrics.Schedule)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Upcoming by Patient", &s.metrics.ListUpcoming)
	printOperationReport("History by Patient", &s.metrics.ListHistory)

	booked := atomic.LoadInt64(&s.metrics.Booking.Success)
	cancelled := atomic.LoadInt64(&s.metrics.Cancel.Success)
	fmt.Printf("Net slots held by the run: %d\n", booked-cancelled)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
