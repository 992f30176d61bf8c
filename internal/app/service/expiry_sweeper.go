package service

import (
	"context"
	"time"

	"github.com/snapurl/snapurl/internal/app/repository"
	infraPrometheus "github.com/snapurl/snapurl/internal/infra/prometheus"
	"go.uber.org/zap"
)

const defaultSweepInterval = 30 * time.Second

// ExpirySweeper periodically removes links whose expiry has passed,
// together with their click history. Redirect correctness never
// depends on it: the resolver checks expiry on every read, the sweeper
// only reclaims storage.
type ExpirySweeper struct {
	logger   *zap.Logger
	links    repository.LinkRepository
	interval time.Duration
	stopChan chan struct{}
}

// NewExpirySweeper creates a sweeper running at the given interval
// (30s if non-positive).
func NewExpirySweeper(logger *zap.Logger, links repository.LinkRepository, interval time.Duration) *ExpirySweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &ExpirySweeper{
		logger:   logger,
		links:    links,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (s *ExpirySweeper) Start() {
	go s.run()
}

// Stop stops the periodic sweep.
func (s *ExpirySweeper) Stop() {
	close(s.stopChan)
}

func (s *ExpirySweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopChan:
			s.logger.Info("expiry sweeper stopped")
			return
		}
	}
}

func (s *ExpirySweeper) sweep() {
	ctx := context.Background()
	cutoff := time.Now()

	purged, err := s.links.DeleteExpired(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to purge expired links", zap.Error(err))
		return
	}

	if purged > 0 {
		infraPrometheus.ExpiredLinksPurged.Add(float64(purged))
		s.logger.Info("purged expired links",
			zap.Int64("count", purged),
			zap.Time("cutoff", cutoff),
		)
	}
}
