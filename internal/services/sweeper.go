package services

import (
	"context"
	"sync"
	"time"

	"github.com/mroshb/pair_quiz/pkg/logger"
)

const sweepBatchSize = 100

// ExpirySweeper periodically finishes games whose finish deadline passed and drops stale pending games.
type ExpirySweeper struct {
	games      *PairGameService
	interval   time.Duration
	pendingTTL time.Duration

	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	started bool
}

// NewExpirySweeper returns a sweeper running every interval. pendingTTL of 0 keeps pending games forever.
func NewExpirySweeper(games *PairGameService, interval, pendingTTL time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		games:      games,
		interval:   interval,
		pendingTTL: pendingTTL,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the sweep loop in the background. A non-positive interval disables it.
func (s *ExpirySweeper) Start() {
	if s.interval <= 0 || s.started {
		return
	}
	s.started = true

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		logger.Info("Expiry sweeper started", "interval", s.interval, "pending_ttl", s.pendingTTL)
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.SweepOnce(context.Background())
			}
		}
	}()
}

// Stop ends the loop and waits for a running sweep to return.
func (s *ExpirySweeper) Stop() {
	s.once.Do(func() { close(s.stop) })
	if s.started {
		<-s.done
	}
}

// SweepOnce runs a single pass.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in expiry sweeper", "error", r)
		}
	}()

	for {
		finished, err := s.games.FinishExpired(ctx, sweepBatchSize)
		if err != nil {
			logger.Error("Failed to finish expired games", "error", err)
			break
		}
		if finished > 0 {
			logger.Info("Finished expired games", "count", finished)
		}
		if finished < sweepBatchSize {
			break
		}
	}

	if s.pendingTTL > 0 {
		count, err := s.games.DeleteStalePending(ctx, s.pendingTTL)
		if err != nil {
			logger.Error("Failed to delete stale pending games", "error", err)
		} else if count > 0 {
			logger.Info("Deleted stale pending games", "count", count)
		}
	}
}
