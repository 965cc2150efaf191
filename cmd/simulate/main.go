package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/belle-designer/AppointmentSystem/internal/db"
	"github.com/belle-designer/AppointmentSystem/internal/directory"
	"github.com/belle-designer/AppointmentSystem/internal/logger"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	TriageRatio  float64
	ReadRatio    float64
	CancelRatio  float64
	DaysAhead    int
	PatientLimit int
	PostgresDSN  string // empty means the api-server runs the demo directory

	// throttled requests wait out the server's rate-limit window
	ThrottleRetries int
	ThrottleBackoff time.Duration
}

type DataPool struct {
	Patients []uuid.UUID
	Doctors  []uuid.UUID
	Times    []string

	mu           sync.RWMutex
	appointments []booked
}

type booked struct {
	ID        uuid.UUID
	PatientID uuid.UUID
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Rejected  int64
	Throttled int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

// Record classifies a response: 2xx success, 409 conflict, 422 rule rejection, 429 throttled.
func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case status == http.StatusUnprocessableEntity:
		atomic.AddInt64(&om.Rejected, 1)
	case status == http.StatusTooManyRequests:
		atomic.AddInt64(&om.Throttled, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

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
	Booking  OperationMetrics
	Triage   OperationMetrics
	Cancel   OperationMetrics
	ReadByID OperationMetrics
	List     OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     *zap.Logger
}

func main() {
	_ = godotenv.Load()

	log, err := logger.New(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	log.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("triage", cfg.TriageRatio),
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

	sim.pool, err = sim.loadDataPool(ctx)
	if err != nil {
		log.Fatal("load data pool", zap.Error(err))
	}
	log.Info("data pool loaded",
		zap.Int("patients", len(sim.pool.Patients)),
		zap.Int("doctors", len(sim.pool.Doctors)),
		zap.Int("times", len(sim.pool.Times)),
	)

	sim.Run()
	sim.PrintReport()

	if err := sim.VerifyBookings(context.Background()); err != nil {
		log.Fatal("booking check failed", zap.Error(err))
	}
	log.Info("uniqueness and capacity hold")
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.4),
		TriageRatio:  getFloat("SIM_TRIAGE_RATIO", 0.2),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.05),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.35),
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 14),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 4000),

		ThrottleRetries: getInt("SIM_THROTTLE_RETRIES", 5),
		ThrottleBackoff: getDuration("SIM_THROTTLE_BACKOFF", time.Second),
	}
	if getEnv("STORE_DRIVER", "memory") == "postgres" {
		cfg.PostgresDSN = os.Getenv("POSTGRES_DSN")
	}

	total := cfg.BookingRatio + cfg.TriageRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.TriageRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}
	if cfg.ThrottleRetries < 0 || cfg.ThrottleBackoff <= 0 {
		return fmt.Errorf("SIM_THROTTLE_RETRIES must be >= 0 and SIM_THROTTLE_BACKOFF > 0")
	}
	return nil
}

// loadDataPool takes doctors and slot times from the api and patients from postgres,
// or from the demo directory when the server runs without a database.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	dp := &DataPool{}

	var doctors []struct {
		ID uuid.UUID `json:"id"`
	}
	if err := s.getJSON(ctx, "/doctors", nil, &doctors); err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	for _, d := range doctors {
		dp.Doctors = append(dp.Doctors, d.ID)
	}

	var catalog struct {
		Times []string `json:"times"`
	}
	if err := s.getJSON(ctx, "/slots", nil, &catalog); err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	dp.Times = catalog.Times

	if s.config.PostgresDSN != "" {
		pgPool, err := db.ConnectPostgres(ctx, s.config.PostgresDSN, db.PoolOptions{MaxConns: 2})
		if err != nil {
			return nil, err
		}
		defer pgPool.Close()
		if dp.Patients, err = loadPatients(ctx, pgPool, s.config.PatientLimit); err != nil {
			return nil, err
		}
	} else {
		for _, p := range directory.Demo(directory.DemoSeed, directory.DemoDoctors, directory.DemoPatients).Patients() {
			dp.Patients = append(dp.Patients, p.ID)
		}
	}

	if len(dp.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dp.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded")
	}
	if len(dp.Times) == 0 {
		return nil, fmt.Errorf("no slot times loaded")
	}
	return dp, nil
}

func loadPatients(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

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
	c := s.config

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < c.BookingRatio:
			s.doBooking(ctx, rng)
		case r < c.BookingRatio+c.TriageRatio:
			s.doTriage(ctx, rng)
		case r < c.BookingRatio+c.TriageRatio+c.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			if rng.Intn(2) == 0 {
				s.doReadByID(ctx, rng)
			} else {
				s.doListByPatient(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	body := map[string]string{
		"doctor_id": s.pool.Doctors[rng.Intn(len(s.pool.Doctors))].String(),
		"date":      time.Now().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)).Format("2006-01-02"),
		"time":      s.pool.Times[rng.Intn(len(s.pool.Times))],
		"notes":     "simulated",
	}

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	start := time.Now()
	status := s.call(ctx, http.MethodPost, "/appointments", actor{patientID, "patient"}, body, &created)
	s.metrics.Booking.Record(time.Since(start), status)

	if status == http.StatusCreated && created.ID != uuid.Nil {
		s.pool.AddAppointment(booked{ID: created.ID, PatientID: patientID})
	}
}

func (s *Simulator) doTriage(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	as := actor{doctorID, "doctor"}

	var queue []struct {
		ID uuid.UUID `json:"id"`
	}
	start := time.Now()
	status := s.call(ctx, http.MethodGet, "/triage", as, nil, &queue)
	if status != http.StatusOK || len(queue) == 0 {
		s.metrics.Triage.Record(time.Since(start), status)
		return
	}

	action := "confirm"
	if rng.Intn(4) == 0 {
		action = "decline"
	}
	id := queue[rng.Intn(len(queue))].ID
	status = s.call(ctx, http.MethodPost, "/triage/"+id.String()+"/"+action, as, nil, nil)
	s.metrics.Triage.Record(time.Since(start), status)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	start := time.Now()
	status := s.call(ctx, http.MethodPost, "/appointments/"+b.ID.String()+"/cancel", actor{b.PatientID, "patient"}, nil, nil)
	s.metrics.Cancel.Record(time.Since(start), status)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	start := time.Now()
	status := s.call(ctx, http.MethodGet, "/appointments/"+b.ID.String(), actor{b.PatientID, "patient"}, nil, nil)
	s.metrics.ReadByID.Record(time.Since(start), status)
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	start := time.Now()
	status := s.call(ctx, http.MethodGet, "/appointments?limit=20&offset=0", actor{patientID, "patient"}, nil, nil)
	s.metrics.List.Record(time.Since(start), status)
}

// VerifyBookings reads every doctor's appointments back and checks that no (date, time) is
// held twice and no date holds more than the daily capacity.
func (s *Simulator) VerifyBookings(ctx context.Context) error {
	var catalog struct {
		DailyCapacity int `json:"daily_capacity"`
	}
	if err := s.getJSON(ctx, "/slots", nil, &catalog); err != nil {
		return err
	}

	perSlot := map[string]int{}
	perDate := map[string]int{}
	for _, doctorID := range s.pool.Doctors {
		for offset := 0; ; offset += 100 {
			var page struct {
				Items []struct {
					Date   string `json:"date"`
					Time   string `json:"time"`
					Status string `json:"status"`
				} `json:"items"`
			}
			path := "/appointments?limit=100&offset=" + strconv.Itoa(offset)
			if err := s.getJSON(ctx, path, &actor{doctorID, "doctor"}, &page); err != nil {
				return err
			}
			for _, a := range page.Items {
				if a.Status == "cancelled" {
					continue
				}
				perSlot[a.Date+" "+a.Time]++
				perDate[a.Date]++
			}
			if len(page.Items) < 100 {
				break
			}
		}
	}

	for slot, n := range perSlot {
		if n > 1 {
			return fmt.Errorf("slot %s held by %d appointments", slot, n)
		}
	}
	for date, n := range perDate {
		if n > catalog.DailyCapacity {
			return fmt.Errorf("date %s holds %d appointments, capacity %d", date, n, catalog.DailyCapacity)
		}
	}
	return nil
}

type actor struct {
	ID   uuid.UUID
	Role string
}

func (s *Simulator) getJSON(ctx context.Context, path string, as *actor, out any) error {
	a := actor{}
	if as != nil {
		a = *as
	}
	status := s.call(ctx, http.MethodGet, path, a, nil, out)
	if status != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, status)
	}
	return nil
}

// call returns the HTTP status, or 0 when the request never got a response. A 429 is retried
// up to ThrottleRetries times after the server's Retry-After or the configured backoff.
func (s *Simulator) call(ctx context.Context, method, path string, as actor, body, out any) int {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return 0
		}
	}

	for attempt := 0; ; attempt++ {
		resp, err := s.send(ctx, method, path, as, data)
		if err != nil {
			return 0
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < s.config.ThrottleRetries {
			wait := retryAfter(resp.Header, s.config.ThrottleBackoff, time.Now())
			drain(resp)
			select {
			case <-ctx.Done():
				return http.StatusTooManyRequests
			case <-time.After(wait):
			}
			continue
		}

		if out != nil && resp.StatusCode < 300 {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				s.log.Debug("decode response", zap.String("path", path), zap.Error(err))
			}
		}
		drain(resp)
		return resp.StatusCode
	}
}

func (s *Simulator) send(ctx context.Context, method, path string, as actor, data []byte) (*http.Response, error) {
	var reader io.Reader
	if data != nil {
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if as.ID != uuid.Nil {
		req.Header.Set("X-Actor-ID", as.ID.String())
		req.Header.Set("X-Actor-Role", as.Role)
	}
	return s.client.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// retryAfter reads Retry-After (seconds), then X-RateLimit-Reset (unix seconds), and falls back
// to def when neither gives a positive wait.
func retryAfter(h http.Header, def time.Duration, now time.Time) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(unix, 0).Sub(now); d > 0 {
				return d
			}
		}
	}
	return def
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Triage", &s.metrics.Triage)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Patient", &s.metrics.List)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }
	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", om.Success, pct(om.Success))
	for _, row := range []struct {
		label string
		n     int64
	}{
		{"Conflicts", atomic.LoadInt64(&om.Conflict)},
		{"Rejected", atomic.LoadInt64(&om.Rejected)},
		{"Throttled", atomic.LoadInt64(&om.Throttled)},
		{"Errors", atomic.LoadInt64(&om.Error)},
	} {
		if row.n > 0 {
			fmt.Printf("  %s: %d (%.1f%%)\n", row.label, row.n, pct(row.n))
		}
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
