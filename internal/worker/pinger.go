package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/nyuchitech/mukoko-db-gateway/internal/storage"
	"github.com/nyuchitech/mukoko-db-gateway/internal/telemetry"
)

// StorePinger periodically pings the store and reflects the outcome in the
// store_up gauge. State transitions are logged once, not on every tick.
type StorePinger struct {
	store    storage.Store
	metrics  *telemetry.Metrics // nil = log only
	interval time.Duration
	timeout  time.Duration

	up bool
}

// NewStorePinger creates a pinger with the given check interval.
func NewStorePinger(store storage.Store, m *telemetry.Metrics, interval time.Duration) *StorePinger {
	return &StorePinger{
		store:    store,
		metrics:  m,
		interval: interval,
		timeout:  5 * time.Second,
		up:       true,
	}
}

// Run pings the store on every tick until ctx is cancelled. It never returns
// an error for a failed ping; a flapping store should not take the gateway
// down with it.
func (p *StorePinger) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.check(ctx)
		}
	}
}

func (p *StorePinger) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.store.Ping(pingCtx)
	cancel()

	up := err == nil
	if p.metrics != nil {
		if up {
			p.metrics.StoreUp.Set(1)
		} else {
			p.metrics.StoreUp.Set(0)
		}
	}

	if up != p.up {
		if up {
			slog.Info("store connection recovered")
		} else {
			slog.Warn("store ping failed", "error", err)
		}
		p.up = up
	}
}
