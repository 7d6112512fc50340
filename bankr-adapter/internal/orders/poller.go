package orders

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/internal/metrics"
	"github.com/Checker-Finance/orders/pkg/model"
)

// DefaultPollInterval matches how often an open order detail is refreshed.
const DefaultPollInterval = 5 * time.Second

// OrderGetter fetches a single order; (nil, nil) means not found.
type OrderGetter interface {
	GetOrder(ctx context.Context, orderID string) (*model.ExternalOrder, error)
}

// StatusHandler receives polled orders. changed is true when the status
// differs from the previous observation.
type StatusHandler interface {
	OnStatus(ctx context.Context, order *model.ExternalOrder, changed bool)
	OnTerminal(ctx context.Context, order *model.ExternalOrder)
}

// Poller tracks submitted orders until they reach a terminal status.
// The backend has no push channel, so polling is the only source of updates.
type Poller struct {
	logger   *zap.Logger
	getter   OrderGetter
	handler  StatusHandler
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup

	// guards stopped and every wg.Add so none can race Stop's Wait
	mu      sync.Mutex
	stopped bool

	active sync.Map // orderID → context.CancelFunc
}

func NewPoller(logger *zap.Logger, getter OrderGetter, handler StatusHandler, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		logger:   logger,
		getter:   getter,
		handler:  handler,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Track starts polling orderID unless it is already tracked or the poller
// has been stopped.
func (p *Poller) Track(parent context.Context, orderID string, lastStatus model.OrderStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	if _, exists := p.active.LoadOrStore(orderID, cancel); exists {
		cancel()
		p.logger.Debug("orders.poll_already_active", zap.String("order_id", orderID))
		return
	}
	metrics.TrackedOrders.Inc()

	p.wg.Add(1)
	go func() {
		defer func() {
			p.active.Delete(orderID)
			metrics.TrackedOrders.Dec()
			cancel()
			p.wg.Done()
		}()
		p.poll(ctx, orderID, lastStatus)
	}()
}

// IsTracking reports whether orderID is being polled.
func (p *Poller) IsTracking(orderID string) bool {
	_, ok := p.active.Load(orderID)
	return ok
}

// Untrack stops polling orderID.
func (p *Poller) Untrack(orderID string) {
	if v, ok := p.active.Load(orderID); ok {
		v.(context.CancelFunc)()
	}
}

// Stop ends every polling goroutine and waits for them to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.stopCh)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) poll(ctx context.Context, orderID string, lastStatus model.OrderStatus) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("orders.poll_stopped",
				zap.String("order_id", orderID),
				zap.String("last_status", string(lastStatus)))
			return

		case <-p.stopCh:
			p.logger.Info("orders.poll_stopped",
				zap.String("order_id", orderID),
				zap.String("reason", "poller_shutdown"))
			return

		case <-ticker.C:
			order, err := p.getter.GetOrder(ctx, orderID)
			if err != nil {
				p.logger.Warn("orders.poll_error",
					zap.String("order_id", orderID),
					zap.Error(err))
				continue
			}
			if order == nil {
				p.logger.Warn("orders.poll_not_found", zap.String("order_id", orderID))
				continue
			}
			metrics.SetLastPoll("order_poller", time.Now())

			changed := order.Status != lastStatus
			if changed {
				p.logger.Info("orders.status_changed",
					zap.String("order_id", orderID),
					zap.String("from", string(lastStatus)),
					zap.String("to", string(order.Status)))
				lastStatus = order.Status
			}
			p.handler.OnStatus(ctx, order, changed)

			if order.Status.Terminal() {
				p.handler.OnTerminal(ctx, order)
				p.logger.Info("orders.poll_complete",
					zap.String("order_id", orderID),
					zap.String("final_status", string(order.Status)))
				return
			}
		}
	}
}
