package offers

import (
	"context"
	"log/slog"
	"time"
)

// Refresher periodically rebuilds the cached offer set
type Refresher struct {
	service  *Service
	interval time.Duration
}

// NewRefresher creates a refresh worker
func NewRefresher(service *Service, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Refresher{
		service:  service,
		interval: interval,
	}
}

// Start runs the worker in a goroutine until ctx is cancelled
func (r *Refresher) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *Refresher) run(ctx context.Context) {
	slog.Info("offer refresher started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Warm the cache on start
	r.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("offer refresher stopped")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// refresh keeps the previous cache entry when the load fails
func (r *Refresher) refresh(ctx context.Context) {
	offers, err := r.service.Load(ctx)
	if err != nil {
		slog.Error("failed to refresh offers", "error", err)
		return
	}
	slog.Debug("offers refreshed", "count", len(offers))
}
