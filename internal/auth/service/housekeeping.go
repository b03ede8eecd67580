package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/metrics"
)

// DefaultHousekeepingInterval is used when no interval is configured.
const DefaultHousekeepingInterval = time.Hour

// housekeepingTimeout bounds a single cleanup pass.
const housekeepingTimeout = time.Minute

// Cleaner is anything that deletes expired records and reports how many.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// HousekeepingService periodically removes OTP challenges that expired
// beyond their grace period. It shares no locks with request paths.
type HousekeepingService struct {
	Cleaner  Cleaner
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(cleaner Cleaner, logger *slog.Logger, m *metrics.Metrics, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HousekeepingService{
		Cleaner:  cleaner,
		Logger:   logger,
		Metrics:  m,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress cleanup has finished. It is safe to
// call more than once.
func (s *HousekeepingService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		s.Logger.Info("housekeeping service stopped")
	})
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.RunOnce()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-s.stopCh:
			return
		}
	}
}

// RunOnce performs a single cleanup pass and returns the number of records
// removed. Stop cancels a pass in flight.
func (s *HousekeepingService) RunOnce() int {
	ctx, cancel := context.WithTimeout(context.Background(), housekeepingTimeout)
	defer cancel()

	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	n, err := s.Cleaner.CleanupExpired(ctx)
	if err != nil {
		s.Logger.Error("housekeeping cleanup failed", "error", err, "deleted", n)
	} else {
		s.Logger.Info("housekeeping cleanup completed",
			"deleted", n,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	s.Metrics.HousekeepingDeleted(n)
	return n
}
