package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentix/clinic-scheduling/internal/config"
	"github.com/dentix/clinic-scheduling/internal/db"
	"github.com/dentix/clinic-scheduling/internal/schedule"
	"github.com/dentix/clinic-scheduling/internal/session"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	SlotsRatio   float64
	CancelRatio  float64
	PatientLimit int
	DoctorLimit  int
	PostgresDSN  string
	JWTSecret    string
}

type DataPool struct {
	Patients     []uuid.UUID
	Doctors      []uuid.UUID
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

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
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

func (om *OperationMetrics) Stats() (avg, min, max, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p95
}

type Metrics struct {
	Booking OperationMetrics
	Slots   OperationMetrics
	Cancel  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	token   string
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()
	if err := validateSimConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking=%.2f slots=%.2f cancel=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.SlotsRatio, cfg.CancelRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d patients, %d doctors", len(dataPool.Patients), len(dataPool.Doctors))

	// The simulator acts as a secretary so it may book for any patient.
	token, err := session.MintToken(uuid.New(), schedule.RoleSecretary, cfg.JWTSecret, cfg.Duration+time.Hour)
	if err != nil {
		log.Fatalf("mint session token: %v", err)
	}

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		token:  token,
	}

	sim.Run()
	sim.PrintReport()
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.4),
		SlotsRatio:   getFloat("SIM_SLOTS_RATIO", 0.5),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.1),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 500),
		DoctorLimit:  getInt("SIM_DOCTOR_LIMIT", 20),
		PostgresDSN:  baseCfg.PostgresDSN,
		JWTSecret:    baseCfg.JWTSecret,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.SlotsRatio + cfg.CancelRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.SlotsRatio /= total
		cfg.CancelRatio /= total
	}

	return cfg
}

func validateSimConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}

	rows, err = pool.Query(ctx, `SELECT id FROM doctors LIMIT $1`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Doctors = append(dataPool.Doctors, id)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.SlotsRatio:
				s.doSlots(ctx, rng)
			default:
				s.doCancel(ctx, rng)
			}
		}
	}
}

var simTypes = []schedule.AppointmentType{
	schedule.TypeDetartrage,
	schedule.TypeSoin,
	schedule.TypeExtraction,
	schedule.TypeBlanchiment,
	schedule.TypeOrthodontie,
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	apptType := simTypes[rng.Intn(len(simTypes))]

	day := time.Now().AddDate(0, 0, 1+rng.Intn(30))
	hour := 8 + rng.Intn(10)
	minute := 30 * rng.Intn(2)
	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.Local)

	body, _ := json.Marshal(map[string]any{
		"patient_id":       patientID.String(),
		"doctor_id":        doctorID.String(),
		"start_date_time":  start.Format("2006-01-02T15:04:05"),
		"appointment_type": string(apptType),
		"case_type":        string(schedule.CaseNormal),
	})

	began := time.Now()
	resp, err := s.post(ctx, "/appointments", body)
	latency := time.Since(began)
	if err != nil {
		s.metrics.Booking.Record(latency, false, false)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err == nil {
			s.pool.AddAppointment(created.ID)
		}
		s.metrics.Booking.Record(latency, true, false)
	case http.StatusConflict:
		s.metrics.Booking.Record(latency, false, true)
	default:
		s.metrics.Booking.Record(latency, false, false)
	}
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	apptType := simTypes[rng.Intn(len(simTypes))]
	day := time.Now().AddDate(0, 0, 1+rng.Intn(30))

	url := fmt.Sprintf("%s/doctors/%s/slots?date=%s&type=%s",
		s.config.APIBaseURL, doctorID, day.Format("2006-01-02"), apptType)

	began := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	resp, err := s.client.Do(req)
	latency := time.Since(began)
	if err != nil {
		s.metrics.Slots.Record(latency, false, false)
		return
	}
	defer resp.Body.Close()
	s.metrics.Slots.Record(latency, resp.StatusCode == http.StatusOK, false)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	began := time.Now()
	resp, err := s.post(ctx, fmt.Sprintf("/appointments/%s/cancel", id), nil)
	latency := time.Since(began)
	if err != nil {
		s.metrics.Cancel.Record(latency, false, false)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		s.metrics.Cancel.Record(latency, true, false)
	case http.StatusConflict:
		// already terminal
		s.metrics.Cancel.Record(latency, false, true)
	default:
		s.metrics.Cancel.Record(latency, false, false)
	}
}

func (s *Simulator) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	return s.client.Do(req)
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	fmt.Println("=== simulation report ===")
	printOp("booking", &s.metrics.Booking)
	printOp("slots", &s.metrics.Slots)
	printOp("cancel", &s.metrics.Cancel)
}

func printOp(name string, om *OperationMetrics) {
	avg, min, max, p95 := om.Stats()
	fmt.Printf("%-8s total=%d success=%d conflict=%d error=%d avg=%s min=%s max=%s p95=%s\n",
		name, om.Total, om.Success, om.Conflict, om.Error, avg, min, max, p95)
}

// env helpers, shared shape with internal/config

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
