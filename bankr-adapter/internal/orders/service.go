package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/bankr-adapter/internal/pricing"
	"github.com/Checker-Finance/orders/bankr-adapter/internal/wallet"
	"github.com/Checker-Finance/orders/internal/store"
	"github.com/Checker-Finance/orders/pkg/model"
)

var (
	ErrSubmissionInFlight = errors.New("a submission for this maker is already in progress")
	ErrOrderNotFound      = errors.New("order not found")
	ErrNotCancellable     = errors.New("order is not cancellable in its current status")
)

// Event names, published as evt.<name>.v1.<VENUE>.
const (
	EventStep          = "order.step"
	EventSubmitted     = "order.submitted"
	EventCancelled     = "order.cancelled"
	EventStatusChanged = "order.status_changed"
)

// Gateway is the full backend surface the service uses.
type Gateway interface {
	QuoteGateway
	CancelGateway
	Lister
	OrderGetter
}

// EventPublisher publishes order events; the NATS publisher implements it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, name, maker string, correlationID uuid.UUID, payload any) error
}

// ServiceConfig tunes caching and polling.
type ServiceConfig struct {
	OrderCacheTTL time.Duration
	PagerTTL      time.Duration
	PollInterval  time.Duration
}

// Service orchestrates the order workflows for the adapter's wallet:
// submission with a per-maker in-flight guard, cancellation, paginated
// queries, market price probes, and status tracking until terminal.
type Service struct {
	ctx       context.Context
	logger    *zap.Logger
	gateway   Gateway
	wallet    wallet.Wallet
	builder   *QuoteBuilder
	submitter *Submitter
	canceller *Canceller
	pagers    *PagerSet
	store     store.Store
	publisher EventPublisher
	poller    *Poller
	cfg       ServiceConfig

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewService wires the service. ctx bounds background polling; st and pub may be nil.
func NewService(
	ctx context.Context,
	logger *zap.Logger,
	gw Gateway,
	w wallet.Wallet,
	builder *QuoteBuilder,
	st store.Store,
	pub EventPublisher,
	cfg ServiceConfig,
) *Service {
	if cfg.OrderCacheTTL <= 0 {
		cfg.OrderCacheTTL = DefaultPollInterval
	}
	if cfg.PagerTTL <= 0 {
		cfg.PagerTTL = 10 * time.Minute
	}
	s := &Service{
		ctx:       ctx,
		logger:    logger,
		gateway:   gw,
		wallet:    w,
		builder:   builder,
		submitter: NewSubmitter(logger, gw, w),
		canceller: NewCanceller(logger, gw, w),
		pagers:    NewPagerSet(gw, cfg.PagerTTL),
		store:     st,
		publisher: pub,
		cfg:       cfg,
		inflight:  make(map[string]struct{}),
	}
	s.poller = NewPoller(logger, gw, s, cfg.PollInterval)
	return s
}

// Maker is the address orders are placed for, or "" without a wallet.
func (s *Service) Maker() string {
	if s.wallet == nil {
		return ""
	}
	return s.wallet.Address().Hex()
}

// Pagers exposes the per-filter pagers, mainly for cleanup scheduling.
func (s *Service) Pagers() *PagerSet { return s.pagers }

// Poller exposes the status poller.
func (s *Service) Poller() *Poller { return s.poller }

// Close stops status polling.
func (s *Service) Close() {
	s.poller.Stop()
}

// SubmitOrder validates form, then runs the submission workflow. Only one
// submission per maker runs at a time.
func (s *Service) SubmitOrder(ctx context.Context, form OrderForm) (*SubmitResult, error) {
	if form.Maker == "" {
		form.Maker = s.Maker()
	}
	req, err := s.builder.Build(form)
	if err != nil {
		return nil, err
	}
	if s.wallet != nil && !strings.EqualFold(req.Maker, s.wallet.Address().Hex()) {
		return nil, &FormError{Field: "maker", Message: "does not match the adapter wallet"}
	}

	release, err := s.acquire(req.Maker)
	if err != nil {
		return nil, err
	}
	defer release()

	correlationID := uuid.New()
	s.logger.Info("orders.submit.start",
		zap.String("maker", req.Maker),
		zap.String("order_type", string(req.OrderType)),
		zap.Int64("chain_id", req.ChainID),
		zap.String("correlation_id", correlationID.String()))

	observer := func(step Step) {
		s.logger.Info("orders.step",
			zap.String("maker", req.Maker),
			zap.String("step", string(step)),
			zap.String("correlation_id", correlationID.String()))
		s.publish(ctx, EventStep, req.Maker, correlationID, model.OrderEvent{
			Maker:     req.Maker,
			OrderType: req.OrderType,
			ChainID:   req.ChainID,
			Step:      string(step),
			Timestamp: time.Now().UTC(),
		})
	}

	res, err := s.submitter.Submit(ctx, req, observer)
	if err != nil {
		if wfErr, ok := AsWorkflowError(err); ok {
			s.publish(ctx, EventStep, req.Maker, correlationID, model.OrderEvent{
				Maker:     req.Maker,
				OrderType: req.OrderType,
				ChainID:   req.ChainID,
				Step:      string(StepFailed),
				Message:   wfErr.Message,
				Timestamp: time.Now().UTC(),
			})
		}
		return nil, err
	}

	s.pagers.InvalidateMaker(req.Maker)
	if res.Order != nil {
		s.remember(ctx, res.Order)
		ev := model.NewOrderEvent(res.Order)
		ev.QuoteID = res.QuoteID
		s.publish(ctx, EventSubmitted, req.Maker, correlationID, ev)
		if !res.Order.Status.Terminal() {
			s.poller.Track(s.ctx, res.Order.OrderID, res.Order.Status)
		}
		s.logger.Info("orders.submitted",
			zap.String("maker", req.Maker),
			zap.String("order_id", res.Order.OrderID),
			zap.String("status", string(res.Order.Status)))
	}
	return res, nil
}

func (s *Service) acquire(maker string) (func(), error) {
	key := strings.ToLower(maker)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return nil, ErrSubmissionInFlight
	}
	s.inflight[key] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
	}, nil
}

// GetOrder returns an order, from the short-lived cache when possible.
// A missing order yields (nil, nil).
func (s *Service) GetOrder(ctx context.Context, orderID string) (*model.ExternalOrder, error) {
	if s.store != nil {
		cached, err := s.store.GetCachedOrder(ctx, orderID)
		if err != nil {
			s.logger.Debug("orders.cache_read_failed", zap.String("order_id", orderID), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}
	order, err := s.gateway.GetOrder(ctx, orderID)
	if err != nil || order == nil {
		return order, err
	}
	s.cache(ctx, order)
	return order, nil
}

// ListOrders loads the first page for f, replacing the accumulated list.
func (s *Service) ListOrders(ctx context.Context, f Filter) (Page, error) {
	return s.pagers.Get(f).Fetch(ctx, f)
}

// LoadMore appends the next page for f. Without a prior ListOrders there
// is no cursor and nothing is fetched.
func (s *Service) LoadMore(ctx context.Context, f Filter) (Page, error) {
	return s.pagers.Get(f).LoadMore(ctx)
}

// CancelOrder re-reads the order, refuses ineligible statuses, and runs the
// cancellation workflow.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*model.CancelOrderResponse, error) {
	order, err := s.gateway.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !order.Status.Cancellable() {
		return nil, fmt.Errorf("%w: %s", ErrNotCancellable, order.Status)
	}

	resp, err := s.canceller.Cancel(ctx, order)
	if err != nil {
		return resp, err
	}

	maker := order.Maker()
	if maker == "" {
		maker = s.Maker()
	}
	s.pagers.InvalidateMaker(maker)
	s.evict(ctx, orderID)
	s.poller.Untrack(orderID)

	ev := model.NewOrderEvent(order)
	ev.Maker = maker
	if resp.Status != "" {
		ev.Status = model.OrderStatus(resp.Status)
	}
	s.publish(ctx, EventCancelled, maker, uuid.Nil, ev)
	return resp, nil
}

// MarketPrice probes the backend with a market quote and derives the price
// in the direction of pq.OrderType (limit-buy when unset).
func (s *Service) MarketPrice(ctx context.Context, pq PriceQuery) (decimal.Decimal, error) {
	if pq.Maker == "" {
		pq.Maker = s.Maker()
	}
	req, err := s.builder.MarketQuote(pq)
	if err != nil {
		return decimal.Zero, err
	}
	quote, err := s.gateway.CreateQuote(ctx, req)
	if err != nil {
		return decimal.Zero, err
	}
	direction := pq.OrderType
	if direction == "" {
		direction = model.OrderTypeLimitBuy
	}
	return pricing.MarketPrice(direction, quote.Metadata)
}

// RefreshMaker reads the maker's unfiltered first page straight from the
// backend, starts tracking its live orders and refreshes them in place in
// the accumulated lists. Pagers keep their pages and cursors.
func (s *Service) RefreshMaker(ctx context.Context, maker string) (int, error) {
	resp, err := s.gateway.ListOrders(ctx, Filter{Maker: maker}.request(""))
	if err != nil {
		return 0, err
	}
	for i := range resp.Orders {
		o := &resp.Orders[i]
		s.pagers.UpdateOrder(*o)
		if !o.Status.Terminal() {
			s.poller.Track(s.ctx, o.OrderID, o.Status)
		}
	}
	return len(resp.Orders), nil
}

// OnStatus caches every polled order and records status changes.
func (s *Service) OnStatus(ctx context.Context, order *model.ExternalOrder, changed bool) {
	s.cache(ctx, order)
	if !changed {
		return
	}
	s.record(ctx, order)
	s.pagers.UpdateOrder(*order)
	s.publish(ctx, EventStatusChanged, order.Maker(), uuid.Nil, model.NewOrderEvent(order))
}

// OnTerminal publishes the final event for an order.
func (s *Service) OnTerminal(ctx context.Context, order *model.ExternalOrder) {
	s.publish(ctx, "order."+string(order.Status), order.Maker(), uuid.Nil, model.NewOrderEvent(order))
}

func (s *Service) remember(ctx context.Context, order *model.ExternalOrder) {
	s.cache(ctx, order)
	s.record(ctx, order)
}

func (s *Service) cache(ctx context.Context, order *model.ExternalOrder) {
	if s.store == nil {
		return
	}
	if err := s.store.CacheOrder(ctx, order, s.cfg.OrderCacheTTL); err != nil {
		s.logger.Debug("orders.cache_write_failed", zap.String("order_id", order.OrderID), zap.Error(err))
	}
}

func (s *Service) evict(ctx context.Context, orderID string) {
	if s.store == nil {
		return
	}
	if err := s.store.EvictOrder(ctx, orderID); err != nil {
		s.logger.Debug("orders.cache_evict_failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *Service) record(ctx context.Context, order *model.ExternalOrder) {
	if s.store == nil {
		return
	}
	if err := s.store.RecordOrder(ctx, order); err != nil {
		s.logger.Warn("orders.ledger_write_failed",
			zap.String("order_id", order.OrderID),
			zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, name, maker string, correlationID uuid.UUID, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, name, maker, correlationID, payload); err != nil {
		s.logger.Debug("nats.publish_failed",
			zap.String("event", name),
			zap.Error(err))
	}
}
