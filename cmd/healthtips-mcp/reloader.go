package main

import (
	"context"
	"sync"
	"time"

	"github.com/matthewjhunter/healthtips"
	"github.com/matthewjhunter/healthtips/internal/logging"
)

// reloader periodically re-reads the tips dataset so feed imports show up
// without restarting the server.
type reloader struct {
	engine   *healthtips.Engine
	interval time.Duration

	mu   sync.Mutex
	done chan struct{}
}

func newReloader(engine *healthtips.Engine, interval time.Duration) *reloader {
	return &reloader{
		engine:   engine,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// start launches the background loop, checking on each tick.
func (r *reloader) start(ctx context.Context) {
	go r.loop(ctx)
	logging.Info().Dur("interval", r.interval).Msg("reloader: started")
}

// stop signals the loop to exit.
func (r *reloader) stop() {
	close(r.done)
	logging.Info().Msg("reloader: stopped")
}

// reload runs a single check. Shared with the content_reload tool.
func (r *reloader) reload() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed, err := r.engine.ReloadContent()
	if err != nil {
		return false, err
	}
	if changed {
		logging.Info().Int("tips", r.engine.TipCount()).Msg("reloader: dataset reloaded")
	}
	return changed, nil
}

func (r *reloader) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.reload(); err != nil {
				logging.Warn().Err(err).Msg("reloader: reload error")
			}
		}
	}
}
