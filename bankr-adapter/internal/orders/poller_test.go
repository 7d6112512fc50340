package orders

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/orders/pkg/model"
)

// sequenceGetter returns the next status in the sequence on each call.
type sequenceGetter struct {
	statuses []model.OrderStatus
	calls    atomic.Int64
}

func (g *sequenceGetter) GetOrder(_ context.Context, id string) (*model.ExternalOrder, error) {
	idx := int(g.calls.Add(1) - 1)
	if idx >= len(g.statuses) {
		idx = len(g.statuses) - 1
	}
	return &model.ExternalOrder{OrderID: id, Status: g.statuses[idx]}, nil
}

type recordingHandler struct {
	mu       sync.Mutex
	changes  []model.OrderStatus
	seen     int
	terminal []model.OrderStatus
}

func (h *recordingHandler) OnStatus(_ context.Context, o *model.ExternalOrder, changed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen++
	if changed {
		h.changes = append(h.changes, o.Status)
	}
}

func (h *recordingHandler) OnTerminal(_ context.Context, o *model.ExternalOrder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.terminal = append(h.terminal, o.Status)
}

func TestPoller_ReachesTerminal(t *testing.T) {
	getter := &sequenceGetter{statuses: []model.OrderStatus{
		model.StatusOpen, model.StatusPending, model.StatusPending, model.StatusCompleted,
	}}
	h := &recordingHandler{}
	p := NewPoller(zap.NewNop(), getter, h, 2*time.Millisecond)
	defer p.Stop()

	p.Track(context.Background(), "ord-1", model.StatusOpen)
	assert.True(t, p.IsTracking("ord-1"))

	require.Eventually(t, func() bool { return !p.IsTracking("ord-1") }, time.Second, 2*time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []model.OrderStatus{model.StatusPending, model.StatusCompleted}, h.changes)
	assert.Equal(t, []model.OrderStatus{model.StatusCompleted}, h.terminal)
	assert.Equal(t, 4, h.seen)
}

func TestPoller_DeduplicatesTracking(t *testing.T) {
	getter := &sequenceGetter{statuses: []model.OrderStatus{model.StatusOpen}}
	p := NewPoller(zap.NewNop(), getter, &recordingHandler{}, time.Hour)

	p.Track(context.Background(), "ord-1", model.StatusOpen)
	p.Track(context.Background(), "ord-1", model.StatusOpen)

	n := 0
	p.active.Range(func(_, _ any) bool { n++; return true })
	assert.Equal(t, 1, n)

	p.Stop()
	assert.False(t, p.IsTracking("ord-1"))
}

func TestPoller_Untrack(t *testing.T) {
	getter := &sequenceGetter{statuses: []model.OrderStatus{model.StatusOpen}}
	p := NewPoller(zap.NewNop(), getter, &recordingHandler{}, time.Millisecond)
	defer p.Stop()

	p.Track(context.Background(), "ord-1", model.StatusOpen)
	p.Untrack("ord-1")
	require.Eventually(t, func() bool { return !p.IsTracking("ord-1") }, time.Second, time.Millisecond)
}

func TestPoller_TrackAfterStopIsIgnored(t *testing.T) {
	p := NewPoller(zap.NewNop(), &sequenceGetter{statuses: []model.OrderStatus{model.StatusOpen}}, &recordingHandler{}, time.Millisecond)
	p.Stop()
	p.Track(context.Background(), "ord-1", model.StatusOpen)
	assert.False(t, p.IsTracking("ord-1"))
}

func TestPoller_TrackConcurrentWithStop(t *testing.T) {
	getter := &sequenceGetter{statuses: []model.OrderStatus{model.StatusOpen}}
	p := NewPoller(zap.NewNop(), getter, &recordingHandler{}, time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.Track(context.Background(), "ord-"+string(rune('a'+i%26))+string(rune('0'+i/26)), model.StatusOpen)
		}(i)
	}
	p.Stop()
	wg.Wait()

	// every goroutine admitted before Stop has exited, later ones were refused
	active := 0
	p.active.Range(func(_, _ any) bool { active++; return true })
	assert.Zero(t, active)
}
