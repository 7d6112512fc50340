package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/internal/metrics"
)

// MakerRefresher re-reads a maker's first order page from the backend and
// returns how many orders it holds.
type MakerRefresher interface {
	RefreshMaker(ctx context.Context, maker string) (int, error)
}

// EventPublisher is the subset of the NATS publisher the job needs.
type EventPublisher interface {
	PublishEvent(ctx context.Context, name, maker string, correlationID uuid.UUID, payload any) error
}

// ListRefresher periodically refreshes the order lists of watched makers
// and announces each refresh on NATS.
type ListRefresher struct {
	logger    *zap.Logger
	refresher MakerRefresher
	publisher EventPublisher
	makers    []string
	interval  time.Duration
	stopCh    chan struct{}
}

// NewListRefresher constructs the background job. publisher may be nil.
func NewListRefresher(logger *zap.Logger, r MakerRefresher, pub EventPublisher, makers []string, interval time.Duration) *ListRefresher {
	return &ListRefresher{
		logger:    logger,
		refresher: r,
		publisher: pub,
		makers:    makers,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the refresh loop until Stop or ctx cancellation.
func (r *ListRefresher) Start(ctx context.Context) {
	if len(r.makers) == 0 {
		r.logger.Info("list_refresher.disabled (no watched makers)")
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("list_refresher.started",
		zap.Duration("interval", r.interval),
		zap.Int("makers", len(r.makers)))

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-r.stopCh:
			r.logger.Info("list_refresher.stopped (manual stop)")
			return
		case <-ctx.Done():
			r.logger.Info("list_refresher.stopped (context canceled)")
			return
		}
	}
}

// Stop gracefully halts the refresher.
func (r *ListRefresher) Stop() {
	close(r.stopCh)
}

// RunOnce refreshes every watched maker once.
func (r *ListRefresher) RunOnce(ctx context.Context) {
	for _, maker := range r.makers {
		start := time.Now()
		count, err := r.refresher.RefreshMaker(ctx, maker)
		if err != nil {
			r.logger.Warn("list_refresher.refresh_failed",
				zap.String("maker", maker),
				zap.Error(err))
			metrics.IncError("list_refresher", "refresh_failed")
			continue
		}
		metrics.SetLastPoll("list_refresher", time.Now())

		if r.publisher == nil {
			continue
		}
		event := map[string]any{
			"maker":       maker,
			"count":       count,
			"timestamp":   time.Now().UTC(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if err := r.publisher.PublishEvent(ctx, "orders.list_refreshed", maker, uuid.Nil, event); err != nil {
			r.logger.Warn("list_refresher.nats_publish_failed", zap.Error(err))
		}
	}
}
