package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultDebounce is how long inputs must stay unchanged before a price fetch.
const DefaultDebounce = 500 * time.Millisecond

// Result statuses emitted by a Watcher.
const (
	StatusLoading = "loading"
	StatusOK      = "ok"
	StatusError   = "error"
)

// Result is one observation of the market price.
type Result struct {
	Status    string           `json:"status"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Formatted string           `json:"formatted,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// FetchFunc fetches the market price for a query.
type FetchFunc[Q any] func(ctx context.Context, q Q) (decimal.Decimal, error)

// Watcher debounces price queries: every Update restarts the timer, and only
// the latest query is fetched. Results of superseded queries are dropped, and
// their in-flight fetches are cancelled.
type Watcher[Q any] struct {
	logger *zap.Logger
	fetch  FetchFunc[Q]
	emit   func(Result)
	delay  time.Duration

	mu       sync.Mutex
	gen      uint64
	timer    *time.Timer
	cancel   context.CancelFunc
	closed   bool
	inflight sync.WaitGroup
}

// NewWatcher creates a watcher. emit is called from the fetch goroutine.
func NewWatcher[Q any](logger *zap.Logger, delay time.Duration, fetch FetchFunc[Q], emit func(Result)) *Watcher[Q] {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Watcher[Q]{
		logger: logger,
		fetch:  fetch,
		emit:   emit,
		delay:  delay,
	}
}

// Update replaces the pending query and restarts the debounce timer.
func (w *Watcher[Q]) Update(ctx context.Context, q Q) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.resetLocked()
	gen := w.gen
	w.timer = time.AfterFunc(w.delay, func() { w.run(ctx, gen, q) })
}

// Clear drops any pending or in-flight query without starting a new one.
func (w *Watcher[Q]) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
}

// Close stops the watcher and waits for an in-flight fetch to unwind.
func (w *Watcher[Q]) Close() {
	w.mu.Lock()
	w.closed = true
	w.resetLocked()
	w.mu.Unlock()
	w.inflight.Wait()
}

func (w *Watcher[Q]) resetLocked() {
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

func (w *Watcher[Q]) run(parent context.Context, gen uint64, q Q) {
	w.mu.Lock()
	if gen != w.gen || w.closed {
		w.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	w.inflight.Add(1)
	w.mu.Unlock()
	defer w.inflight.Done()
	defer cancel()

	w.emitIfCurrent(gen, Result{Status: StatusLoading})

	price, err := w.fetch(ctx, q)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Debug("pricing.fetch_failed", zap.Error(err))
		}
		w.emitIfCurrent(gen, Result{Status: StatusError, Error: err.Error()})
		return
	}
	w.emitIfCurrent(gen, Result{Status: StatusOK, Price: &price, Formatted: FormatDecimal(price)})
}

// emitIfCurrent runs emit under the lock; emit must not call back into w.
func (w *Watcher[Q]) emitIfCurrent(gen uint64, r Result) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen || w.closed {
		return
	}
	w.emit(r)
}
