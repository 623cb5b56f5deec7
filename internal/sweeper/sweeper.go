package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/fintrack/auth-service/internal/store"
)

// Sweeper purges expired refresh-token records on a ticker, off the request
// path. Stop it by cancelling the context passed to Run.
type Sweeper struct {
	Store    store.TokenStore
	Interval time.Duration
	Logger   *slog.Logger
}

func New(st store.TokenStore, interval time.Duration, l *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{Store: st, Interval: interval, Logger: l}
}

func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("sweeper stopped")
			return
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	start := time.Now()
	n := s.Store.CleanExpired(ctx)
	if n > 0 {
		s.Logger.Info("expired tokens purged", "count", n, "duration_ms", time.Since(start).Milliseconds())
	}
}
