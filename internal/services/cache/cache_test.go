package cache

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmu-dashboard-go/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(enabled bool) *QueryCache {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := &config.Config{
		Server: config.ServerConfig{SessionTTL: time.Hour},
		Cache:  config.CacheConfig{Enabled: enabled, TTL: time.Minute, MaxSize: 100},
	}
	return NewQueryCache(cfg, nil, logger)
}

func TestNewKey(t *testing.T) {
	a := NewKey("messages", url.Values{"room_id": {"1"}, "offset": {"0"}, "limit": {"50"}})
	b := NewKey("messages", url.Values{"limit": {"50"}, "room_id": {"1"}, "offset": {"0"}})
	c := NewKey("messages", url.Values{"limit": {"50"}, "room_id": {"1"}, "offset": {"50"}})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a.hash(), b.hash())
	assert.Equal(t, "messages?limit=50&offset=0&room_id=1", a.String())
	assert.True(t, Key{}.IsZero())
}

func TestQueryCache_FetchDeduplicates(t *testing.T) {
	qc := newTestCache(true)
	key := NewKey("statistics", url.Values{"room_id": {"1"}})

	var calls int32
	release := make(chan struct{})
	fn := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]any, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := qc.Fetch(context.Background(), key, fn)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool {
		e, ok := qc.Peek(key)
		return ok && e.Status == StatusPending
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, 42, v)
	}

	// resolved entries are served without calling fn again
	v, err := qc.Fetch(context.Background(), key, fn)
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQueryCache_ErrorIsKept(t *testing.T) {
	qc := newTestCache(true)
	key := NewKey("block_user", nil)
	boom := errors.New("boom")

	var calls int32
	fn := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}

	_, err := qc.Fetch(context.Background(), key, fn)
	assert.ErrorIs(t, err, boom)
	_, err = qc.Fetch(context.Background(), key, fn)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	e, ok := qc.Peek(key)
	require.True(t, ok)
	assert.Equal(t, StatusError, e.Status)

	qc.Invalidate(key)
	_, ok = qc.Peek(key)
	assert.False(t, ok)
	_, _ = qc.Fetch(context.Background(), key, fn)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQueryCache_FetchContextCancel(t *testing.T) {
	qc := newTestCache(true)
	key := NewKey("slow", nil)
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := qc.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		<-release
		return "late", nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	e, ok := qc.Peek(key)
	require.True(t, ok)
	assert.Equal(t, StatusPending, e.Status)
}

func TestQueryCache_Disabled(t *testing.T) {
	qc := newTestCache(false)
	key := NewKey("messages", nil)

	var calls int32
	fn := func(ctx context.Context) (any, error) {
		return atomic.AddInt32(&calls, 1), nil
	}

	v, err := qc.Fetch(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)
	v, err = qc.Fetch(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
	assert.Equal(t, 0, qc.ItemCount())
}

func TestQueryCache_Clear(t *testing.T) {
	qc := newTestCache(true)
	fn := func(ctx context.Context) (any, error) { return "ok", nil }
	for _, room := range []string{"1", "2", "3"} {
		_, err := qc.Fetch(context.Background(), NewKey("statistics", url.Values{"room_id": {room}}), fn)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, qc.ItemCount())

	qc.Clear()
	assert.Equal(t, 0, qc.ItemCount())
}

func TestObserver_WaitResolves(t *testing.T) {
	qc := newTestCache(true)
	o := qc.Observer("session:feed")
	key := NewKey("messages", url.Values{"offset": {"0"}})

	e := o.Observe(key, func(ctx context.Context) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "page", nil
	})
	assert.Equal(t, StatusPending, e.Status)

	e = o.Wait(context.Background(), time.Second)
	assert.Equal(t, StatusSuccess, e.Status)
	assert.Equal(t, "page", e.Data)
	assert.Equal(t, key, e.Key)
	assert.Same(t, o, qc.Observer("session:feed"))
}

func TestObserver_WaitTimeout(t *testing.T) {
	qc := newTestCache(true)
	o := qc.Observer("session:feed")
	release := make(chan struct{})
	defer close(release)

	o.Observe(NewKey("messages", nil), func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	})
	e := o.Wait(context.Background(), 10*time.Millisecond)
	assert.Equal(t, StatusPending, e.Status)
}

func TestObserver_StaleResultDropped(t *testing.T) {
	qc := newTestCache(true)
	o := qc.Observer("session:feed")
	slow := NewKey("messages", url.Values{"offset": {"0"}})
	fast := NewKey("messages", url.Values{"offset": {"50"}})

	release := make(chan struct{})
	o.Observe(slow, func(ctx context.Context) (any, error) {
		<-release
		return "page 1", nil
	})
	o.Observe(fast, func(ctx context.Context) (any, error) {
		return "page 2", nil
	})

	e := o.Wait(context.Background(), time.Second)
	require.Equal(t, StatusSuccess, e.Status)
	assert.Equal(t, "page 2", e.Data)

	close(release)
	require.Eventually(t, func() bool {
		e, ok := qc.Peek(slow)
		return ok && e.Resolved()
	}, time.Second, time.Millisecond)

	// the late result of the abandoned key stays in the cache but not in the view
	assert.False(t, o.deliver(Entry{Key: slow, Status: StatusSuccess, Data: "page 1"}))
	assert.Equal(t, "page 2", o.Current().Data)
	assert.Equal(t, fast, o.Active())
}

func TestObserver_SlotsAreIndependent(t *testing.T) {
	qc := newTestCache(true)
	a := qc.Observer("a:feed")
	b := qc.Observer("b:feed")
	assert.NotSame(t, a, b)

	a.Observe(NewKey("messages", url.Values{"room_id": {"1"}}), func(ctx context.Context) (any, error) { return 1, nil })
	assert.True(t, b.Active().IsZero())
	assert.Equal(t, StatusPending, b.Current().Status)
}
