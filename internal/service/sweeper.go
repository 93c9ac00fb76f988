package service

import (
	"context"
	"log/slog"
	"time"
)

// sweepBatch bounds the sessions examined per tick
const sweepBatch = 500

// Sweeper periodically applies the server-side expiries to talk-phase sessions.
// It goes through the same conditional transitions as clients do.
type Sweeper struct {
	coord    *Coordinator
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(coord *Coordinator, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		coord:    coord,
		interval: interval,
		logger:   logger.With("component", "sweeper"),
	}
}

// Run sweeps every interval until ctx is cancelled
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns how many sessions it changed.
func (w *Sweeper) Sweep(ctx context.Context) int {
	sessions, err := w.coord.sessions.ListActive(ctx, sweepBatch)
	if err != nil {
		w.logger.Error("list active sessions", "err", err)
		return 0
	}

	changed := 0
	for _, s := range sessions {
		if ctx.Err() != nil {
			return changed
		}
		closed, err := w.coord.ExpirePersona(ctx, s.ID)
		if err != nil {
			w.logger.Warn("expire persona", "session", s.ID, "err", err)
		} else if closed {
			changed++
		}

		_, ended, err := w.coord.expireSession(ctx, "", s.ID)
		if err != nil {
			w.logger.Warn("expire session", "session", s.ID, "err", err)
			continue
		}
		if ended {
			changed++
		}
	}
	return changed
}
