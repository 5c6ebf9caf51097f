package cleanup

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"logitrack/pkg/log"
)

// Sweeper removes idle state older than its own retention window.
type Sweeper interface {
	Sweep(now time.Time) int
}

// CleanupService periodically sweeps idle cache entries.
type CleanupService struct {
	target   Sweeper
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewCleanupService(target Sweeper, interval time.Duration) *CleanupService {
	return &CleanupService{
		target:   target,
		interval: interval,
		now:      time.Now,
		logger:   log.WithComponent("janitor"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called. It blocks.
func (s *CleanupService) Start() {
	defer close(s.done)
	s.logger.Info().Dur("interval", s.interval).Msg("Starting cache janitor")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-s.stopChan:
			s.logger.Info().Msg("Stopping cache janitor")
			return
		}
	}
}

// Stop ends the loop and waits for it to return.
func (s *CleanupService) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

func (s *CleanupService) RunOnce() int {
	count := s.target.Sweep(s.now())
	if count > 0 {
		s.logger.Debug().Int("removed", count).Msg("Swept idle cache entries")
	}
	return count
}
