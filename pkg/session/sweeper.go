package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/openprobe/deepsearch/pkg/config"
)

// Sweeper periodically removes expired terminal sessions from the store.
type Sweeper struct {
	store    *Store
	interval time.Duration
	ttl      time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper over the store.
func NewSweeper(store *Store, cfg config.SessionsConfig) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: cfg.SweepInterval,
		ttl:      cfg.IdleTTL,
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Session sweeper started", "interval", s.interval, "ttl", s.ttl)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Session sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.store.SweepExpired(s.ttl); removed > 0 {
				slog.Info("Swept expired sessions", "count", removed)
			}
		}
	}
}
