package cache

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache[T any](ttl time.Duration) (*TTL[T], *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTL[T](ttl)
	c.now = clk.now
	return c, clk
}

func TestTTL_PutGet(t *testing.T) {
	c, _ := newTestCache[string](time.Minute)
	c.Put("k", "v")

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestTTL_Expires(t *testing.T) {
	c, clk := newTestCache[int](time.Minute)
	c.Put("k", 1)

	clk.advance(2 * time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry removed on read")
}

func TestTTL_GetOrCreate_CreatesOnce(t *testing.T) {
	c, _ := newTestCache[*int](time.Minute)
	calls := 0
	create := func() *int { calls++; v := calls; return &v }

	a := c.GetOrCreate("k", create)
	b := c.GetOrCreate("k", create)
	assert.Same(t, a, b)
	assert.Equal(t, 1, calls)
}

func TestTTL_Bust(t *testing.T) {
	c, _ := newTestCache[string](time.Minute)
	c.Put("k", "v")
	c.Bust("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTTL_EachSkipsExpired(t *testing.T) {
	c, clk := newTestCache[string](time.Minute)
	c.Put("old", "a")
	clk.advance(90 * time.Second)
	c.Put("new", "b")

	var keys []string
	c.Each(func(k, _ string) { keys = append(keys, k) })
	sort.Strings(keys)
	assert.Equal(t, []string{"new"}, keys)
}

func TestTTL_CleanupExpired(t *testing.T) {
	c, clk := newTestCache[string](time.Minute)
	c.Put("a", "1")
	c.Put("b", "2")
	clk.advance(time.Hour)
	c.cleanupExpired()
	assert.Equal(t, 0, c.Len())
}
