package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/orders/pkg/model"
)

func ordersN(prefix string, n int) []model.ExternalOrder {
	out := make([]model.ExternalOrder, n)
	for i := range out {
		out[i] = model.ExternalOrder{OrderID: fmt.Sprintf("%s-%d", prefix, i), Status: model.StatusOpen}
	}
	return out
}

func ids(p Page) []string {
	out := make([]string, len(p.Orders))
	for i, o := range p.Orders {
		out[i] = o.OrderID
	}
	return out
}

// twoPages serves page "a" then, for cursor "c1", page "b" with no cursor.
func twoPages(req model.ListOrdersRequest) (*model.ListOrdersResponse, error) {
	if req.Cursor == "c1" {
		return &model.ListOrdersResponse{Orders: ordersN("b", 2)}, nil
	}
	return &model.ListOrdersResponse{Orders: ordersN("a", 2), Next: "c1"}, nil
}

func TestPager_FetchAndLoadMore(t *testing.T) {
	gw := newFakeGateway()
	gw.listFn = twoPages
	p := NewPager(gw)
	f := Filter{Maker: testMaker}

	page, err := p.Fetch(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-0", "a-1"}, ids(page))
	assert.True(t, page.HasMore)

	page, err = p.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a-0", "a-1", "b-0", "b-1"}, ids(page))
	assert.False(t, page.HasMore)
	assert.False(t, p.HasMore())

	require.Len(t, gw.listReqs, 2)
	assert.Equal(t, "c1", gw.listReqs[1].Cursor)
	assert.Equal(t, testMaker, gw.listReqs[1].Maker)
}

func TestPager_LoadMoreIsIdempotentWithoutCursor(t *testing.T) {
	gw := newFakeGateway()
	gw.listFn = twoPages
	p := NewPager(gw)

	_, err := p.Fetch(context.Background(), Filter{Maker: testMaker})
	require.NoError(t, err)
	_, err = p.LoadMore(context.Background())
	require.NoError(t, err)
	calls := gw.listCount()

	for i := 0; i < 3; i++ {
		page, err := p.LoadMore(context.Background())
		require.NoError(t, err)
		assert.Len(t, page.Orders, 4)
	}
	assert.Equal(t, calls, gw.listCount(), "no fetch without a cursor")
}

func TestPager_LoadMoreBeforeFetch(t *testing.T) {
	gw := newFakeGateway()
	page, err := NewPager(gw).LoadMore(context.Background())
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
	assert.Zero(t, gw.listCount())
}

func TestPager_FetchReplaces(t *testing.T) {
	gw := newFakeGateway()
	gw.listFn = twoPages
	p := NewPager(gw)
	f := Filter{Maker: testMaker}

	_, _ = p.Fetch(context.Background(), f)
	_, _ = p.LoadMore(context.Background())
	page, err := p.Fetch(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-0", "a-1"}, ids(page))
}

// Changing the filter clears accumulated orders before the next page arrives.
func TestPager_FilterChangeClearsBeforeResponse(t *testing.T) {
	gw := newFakeGateway()
	release := make(chan struct{})
	gw.listFn = func(req model.ListOrdersRequest) (*model.ListOrdersResponse, error) {
		if req.Status == model.StatusCompleted {
			<-release
			return &model.ListOrdersResponse{Orders: ordersN("done", 1)}, nil
		}
		return &model.ListOrdersResponse{Orders: ordersN("open", 3), Next: "c1"}, nil
	}
	p := NewPager(gw)

	_, err := p.Fetch(context.Background(), Filter{Maker: testMaker})
	require.NoError(t, err)

	done := make(chan Page)
	go func() {
		page, _ := p.Fetch(context.Background(), Filter{Maker: testMaker, Status: model.StatusCompleted})
		done <- page
	}()

	require.Eventually(t, func() bool { return gw.listCount() == 2 }, time.Second, time.Millisecond)
	snap := p.Snapshot()
	assert.Empty(t, snap.Orders, "stale results must not stay visible")
	assert.False(t, snap.HasMore)
	assert.Equal(t, model.StatusCompleted, p.Filter().Status)

	close(release)
	page := <-done
	assert.Equal(t, []string{"done-0"}, ids(page))
}

func TestPager_StaleResponseDiscarded(t *testing.T) {
	gw := newFakeGateway()
	release := make(chan struct{})
	gw.listFn = func(req model.ListOrdersRequest) (*model.ListOrdersResponse, error) {
		if req.Type == model.OrderTypeDCA {
			<-release
			return &model.ListOrdersResponse{Orders: ordersN("dca", 2), Next: "x"}, nil
		}
		return &model.ListOrdersResponse{Orders: ordersN("twap", 1)}, nil
	}
	p := NewPager(gw)

	done := make(chan struct{})
	go func() {
		_, _ = p.Fetch(context.Background(), Filter{Maker: testMaker, Type: model.OrderTypeDCA})
		close(done)
	}()
	require.Eventually(t, func() bool { return gw.listCount() == 1 }, time.Second, time.Millisecond)

	page, err := p.Fetch(context.Background(), Filter{Maker: testMaker, Type: model.OrderTypeTWAP})
	require.NoError(t, err)
	assert.Equal(t, []string{"twap-0"}, ids(page))

	close(release)
	<-done
	assert.Equal(t, []string{"twap-0"}, ids(p.Snapshot()), "late dca page dropped")
	assert.False(t, p.HasMore())
}

func TestPager_Invalidate(t *testing.T) {
	gw := newFakeGateway()
	gw.listFn = twoPages
	p := NewPager(gw)

	_, _ = p.Fetch(context.Background(), Filter{Maker: testMaker})
	p.Invalidate()
	assert.Empty(t, p.Snapshot().Orders)
	assert.False(t, p.HasMore())

	page, err := p.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a-0", "a-1"}, ids(page), "load more after invalidation restarts from page one")
	assert.True(t, page.HasMore)

	gw.mu.Lock()
	defer gw.mu.Unlock()
	require.Len(t, gw.listReqs, 2)
	assert.Empty(t, gw.listReqs[1].Cursor)
}

func TestPager_LoadMoreAfterRefetchAppends(t *testing.T) {
	gw := newFakeGateway()
	gw.listFn = twoPages
	p := NewPager(gw)

	_, _ = p.Fetch(context.Background(), Filter{Maker: testMaker})
	p.Invalidate()
	_, err := p.LoadMore(context.Background())
	require.NoError(t, err)

	page, err := p.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a-0", "a-1", "b-0", "b-1"}, ids(page))
	assert.False(t, page.HasMore)
}

// ─── In-place updates ─────────────────────────────────────────────────────────

func TestPager_UpdateKeepsPagesAndCursor(t *testing.T) {
	gw := newFakeGateway()
	gw.listFn = twoPages
	p := NewPager(gw)

	_, _ = p.Fetch(context.Background(), Filter{Maker: testMaker})
	_, _ = p.LoadMore(context.Background())

	changed := model.ExternalOrder{OrderID: "b-1", Status: model.StatusPending}
	assert.True(t, p.Update(changed))
	assert.False(t, p.Update(model.ExternalOrder{OrderID: "zz"}))

	page := p.Snapshot()
	assert.Equal(t, []string{"a-0", "a-1", "b-0", "b-1"}, ids(page))
	assert.Equal(t, model.StatusPending, page.Orders[3].Status)
}

func TestPager_UpdateDropsOrderLeavingStatusFilter(t *testing.T) {
	gw := newFakeGateway()
	gw.listFn = twoPages
	p := NewPager(gw)

	_, _ = p.Fetch(context.Background(), Filter{Maker: testMaker, Status: model.StatusOpen})
	assert.True(t, p.Update(model.ExternalOrder{OrderID: "a-0", Status: model.StatusCompleted}))

	page := p.Snapshot()
	assert.Equal(t, []string{"a-1"}, ids(page))
	assert.True(t, page.HasMore, "cursor survives")
}

func TestPager_FetchError(t *testing.T) {
	gw := newFakeGateway()
	gw.listFn = func(model.ListOrdersRequest) (*model.ListOrdersResponse, error) {
		return nil, fmt.Errorf("boom")
	}
	_, err := NewPager(gw).Fetch(context.Background(), Filter{Maker: testMaker})
	assert.EqualError(t, err, "boom")
}

// ─── PagerSet ─────────────────────────────────────────────────────────────────

func TestPagerSet_InvalidateMaker(t *testing.T) {
	gw := newFakeGateway()
	gw.listFn = twoPages
	set := NewPagerSet(gw, time.Minute)

	mine := Filter{Maker: testMaker}
	mineDCA := Filter{Maker: testMaker, Type: model.OrderTypeDCA}
	other := Filter{Maker: "0x00000000000000000000000000000000000000bb"}
	for _, f := range []Filter{mine, mineDCA, other} {
		_, err := set.Get(f).Fetch(context.Background(), f)
		require.NoError(t, err)
	}
	assert.Same(t, set.Get(mine), set.Get(Filter{Maker: "0x00000000000000000000000000000000000000AA"}), "maker is case-insensitive")

	n := set.InvalidateMaker(testMaker)
	assert.Equal(t, 2, n)
	assert.Empty(t, set.Get(mine).Snapshot().Orders)
	assert.Empty(t, set.Get(mineDCA).Snapshot().Orders)
	assert.Len(t, set.Get(other).Snapshot().Orders, 2)
}

func TestPagerSet_UpdateOrder(t *testing.T) {
	gw := newFakeGateway()
	gw.listFn = twoPages
	set := NewPagerSet(gw, time.Minute)

	all := Filter{Maker: testMaker}
	open := Filter{Maker: testMaker, Status: model.StatusOpen}
	for _, f := range []Filter{all, open} {
		_, err := set.Get(f).Fetch(context.Background(), f)
		require.NoError(t, err)
	}

	n := set.UpdateOrder(model.ExternalOrder{OrderID: "a-0", Status: model.StatusCancelled})
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a-0", "a-1"}, ids(set.Get(all).Snapshot()))
	assert.Equal(t, []string{"a-1"}, ids(set.Get(open).Snapshot()))
}
