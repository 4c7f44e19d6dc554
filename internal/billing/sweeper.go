package billing

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically expires ended trials and refills token balances whose period elapsed.
type Sweeper struct {
	svc      *Service
	interval time.Duration
}

// NewSweeper creates a new Sweeper.
func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	return &Sweeper{svc: svc, interval: interval}
}

// Start begins the sweep loop. It blocks until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("billing sweeper started", "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("billing sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Trials are expired before balances are reset so an
// expired team is refilled to zero rather than its old allotment.
func (s *Sweeper) Sweep(ctx context.Context) {
	expired, err := s.svc.ExpireTrials(ctx)
	if err != nil {
		slog.Error("billing sweeper: failed to expire trials", "error", err)
	}
	if ctx.Err() != nil {
		return
	}

	reset, err := s.svc.ResetDueBalances(ctx)
	if err != nil {
		slog.Error("billing sweeper: failed to reset balances", "error", err)
	}

	if expired > 0 || reset > 0 {
		slog.Info("billing sweeper: pass complete", "trialsExpired", expired, "balancesReset", reset)
	}
}
