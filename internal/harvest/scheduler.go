package harvest

import (
	"context"
	"log"
	"time"
)

// Scheduler runs the scanner on a fixed interval.
type Scheduler struct {
	scanner  *Scanner
	interval time.Duration
	logger   *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(scanner *Scanner, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{scanner: scanner, interval: interval, logger: logger}
}

// Start begins the scan loop. An immediate sweep runs before the first tick.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.scanner == nil {
		return
	}
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	processed, err := s.scanner.ScanOnce(ctx)
	if err != nil {
		s.logger.Printf("harvest scan error: err=%v", err)
		return
	}
	if processed > 0 {
		s.logger.Printf("harvest scan: processed=%d", processed)
	}
}
