package orders

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Checker-Finance/orders/pkg/cache"
	"github.com/Checker-Finance/orders/pkg/model"
)

// Lister fetches one page of orders.
type Lister interface {
	ListOrders(ctx context.Context, req model.ListOrdersRequest) (*model.ListOrdersResponse, error)
}

// Filter is the key an accumulated order list belongs to.
type Filter struct {
	Maker  string            `json:"maker"`
	Type   model.OrderType   `json:"type,omitempty"`
	Status model.OrderStatus `json:"status,omitempty"`
}

// Key identifies the filter; makers compare case-insensitively.
func (f Filter) Key() string {
	return strings.ToLower(f.Maker) + "|" + string(f.Type) + "|" + string(f.Status)
}

func (f Filter) request(cursor string) model.ListOrdersRequest {
	return model.ListOrdersRequest{Maker: f.Maker, Type: f.Type, Status: f.Status, Cursor: cursor}
}

// Page is a snapshot of a pager's accumulated orders.
type Page struct {
	Orders  []model.ExternalOrder `json:"orders"`
	HasMore bool                  `json:"hasMore"`
}

// Pager accumulates cursor-paginated orders for one filter at a time.
// Responses that arrive after a filter change or Invalidate are dropped.
type Pager struct {
	lister Lister

	mu      sync.Mutex
	filter  Filter
	bound   bool
	orders  []model.ExternalOrder
	next    string
	gen     uint64
	loading bool
	// set by Invalidate; the next LoadMore starts over from page one
	stale bool
}

func NewPager(l Lister) *Pager {
	return &Pager{lister: l}
}

// Fetch loads the first page for f, replacing whatever was accumulated.
// Switching to a different filter clears orders and cursor before the request.
func (p *Pager) Fetch(ctx context.Context, f Filter) (Page, error) {
	p.mu.Lock()
	if !p.bound || p.filter.Key() != f.Key() {
		p.filter = f
		p.bound = true
		p.orders = nil
		p.next = ""
	}
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	resp, err := p.lister.ListOrders(ctx, f.request(""))
	if err != nil {
		return p.Snapshot(), err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen == p.gen {
		p.orders = append([]model.ExternalOrder(nil), resp.Orders...)
		p.next = resp.Next
		p.stale = false
	}
	return p.snapshotLocked(), nil
}

// LoadMore appends the next page. Without a cursor it returns the current
// snapshot without fetching. After Invalidate it re-fetches the first page
// of the bound filter instead.
func (p *Pager) LoadMore(ctx context.Context) (Page, error) {
	p.mu.Lock()
	if p.bound && p.stale {
		f := p.filter
		p.mu.Unlock()
		return p.Fetch(ctx, f)
	}
	if !p.bound || p.next == "" || p.loading {
		defer p.mu.Unlock()
		return p.snapshotLocked(), nil
	}
	p.loading = true
	gen, f, cursor := p.gen, p.filter, p.next
	p.mu.Unlock()

	resp, err := p.lister.ListOrders(ctx, f.request(cursor))

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
	if err != nil {
		return p.snapshotLocked(), err
	}
	if gen == p.gen {
		p.orders = append(p.orders, resp.Orders...)
		p.next = resp.Next
	}
	return p.snapshotLocked(), nil
}

// Invalidate drops accumulated state; the next Fetch or LoadMore starts
// from scratch.
func (p *Pager) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = nil
	p.next = ""
	p.gen++
	p.stale = p.bound
}

// Update swaps in a fresher copy of an accumulated order. An order that no
// longer matches a status filter is dropped. Reports whether the list changed.
func (p *Pager) Update(order model.ExternalOrder) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.orders {
		if p.orders[i].OrderID != order.OrderID {
			continue
		}
		if p.filter.Status != "" && order.Status != p.filter.Status {
			p.orders = append(p.orders[:i:i], p.orders[i+1:]...)
		} else {
			p.orders[i] = order
		}
		return true
	}
	return false
}

// HasMore is true iff the last page carried a continuation cursor.
func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next != ""
}

// Filter returns the filter the pager is bound to.
func (p *Pager) Filter() Filter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filter
}

func (p *Pager) Snapshot() Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pager) snapshotLocked() Page {
	return Page{
		Orders:  append([]model.ExternalOrder{}, p.orders...),
		HasMore: p.next != "",
	}
}

// PagerSet keeps one pager per filter. Idle pagers expire after the TTL.
type PagerSet struct {
	lister Lister
	pagers *cache.TTL[*Pager]
}

func NewPagerSet(l Lister, ttl time.Duration) *PagerSet {
	return &PagerSet{lister: l, pagers: cache.NewTTL[*Pager](ttl)}
}

// Get returns the pager for f, creating it on first use.
func (s *PagerSet) Get(f Filter) *Pager {
	key := f.Key()
	p := s.pagers.GetOrCreate(key, func() *Pager { return NewPager(s.lister) })
	s.pagers.Put(key, p)
	return p
}

// InvalidateMaker invalidates every pager listing maker's orders.
func (s *PagerSet) InvalidateMaker(maker string) int {
	prefix := strings.ToLower(maker) + "|"
	n := 0
	s.pagers.Each(func(key string, p *Pager) {
		if strings.HasPrefix(key, prefix) {
			p.Invalidate()
			n++
		}
	})
	return n
}

// UpdateOrder applies a fresher copy of order to every pager holding it.
// Accumulated pages and cursors are kept.
func (s *PagerSet) UpdateOrder(order model.ExternalOrder) int {
	n := 0
	s.pagers.Each(func(_ string, p *Pager) {
		if p.Update(order) {
			n++
		}
	})
	return n
}

// StartCleaner removes expired pagers until stop is closed.
func (s *PagerSet) StartCleaner(interval time.Duration, stop <-chan struct{}) {
	s.pagers.StartCleaner(interval, stop)
}
