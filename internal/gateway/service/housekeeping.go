package service

import (
	"log/slog"
	"time"
)

// HousekeepingService periodically sweeps expired authorization
// attempts out of the PKCE cache so abandoned flows don't accumulate.
type HousekeepingService struct {
	PKCE     *PKCEService
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the sweeper. If interval is 0 or
// negative, defaults to 5 minutes.
func NewHousekeepingService(pkce *PKCEService, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &HousekeepingService{
		PKCE:     pkce,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut
// it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until any in-progress sweep
// finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.PKCE.Sweep(); n > 0 {
				s.Logger.Debug("swept expired oauth attempts", "count", n)
			}
		case <-s.stopCh:
			return
		}
	}
}
