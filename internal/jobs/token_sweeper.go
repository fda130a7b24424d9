// Package jobs holds background loops started by the server process: the
// action-token sweeper and the policy expiry sweep. Each job owns a ticker,
// runs once immediately on start, and exits when its context is cancelled or
// Stop is called.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/insureline/insureline/internal/db/repositories"
)

// TokenSweeper periodically deletes action tokens that expired long enough
// ago to be useless. Redemption reads the consumed_at and expires_at columns
// directly, so correctness never depends on the sweep; it only keeps the
// table from growing without bound. The retention window keeps recently
// expired rows around so a late redemption attempt still gets a precise
// "expired" answer instead of "not found".
type TokenSweeper struct {
	tokens    *repositories.TokenRepository
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
}

// NewTokenSweeper creates a sweeper. Zero interval defaults to 1h, zero
// retention to 24h past expiry.
func NewTokenSweeper(tokens *repositories.TokenRepository, interval, retention time.Duration) *TokenSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &TokenSweeper{
		tokens:    tokens,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is cancelled or Stop is called. Run it
// under safego.Go.
func (s *TokenSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("token sweeper started", "interval", s.interval, "retention", s.retention)

	s.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopCh:
			slog.Info("token sweeper stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the loop to exit.
func (s *TokenSweeper) Stop() {
	close(s.stopCh)
}

func (s *TokenSweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)
	removed, err := s.tokens.DeleteExpired(ctx, cutoff)
	if err != nil {
		slog.Error("token sweep failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("token sweep removed expired tokens", "count", removed)
	}
}
