package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sync"
	"time"

	"github.com/danmu-dashboard-go/internal/config"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Status is the lifecycle of a cached query
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	default:
		return "error"
	}
}

// Key identifies a query by endpoint and its full parameter set
type Key struct {
	Endpoint string
	Query    string
}

// NewKey builds a key; url.Values.Encode sorts by name so equal parameter
// sets always produce equal keys
func NewKey(endpoint string, params url.Values) Key {
	return Key{Endpoint: endpoint, Query: params.Encode()}
}

func (k Key) String() string {
	if k.Query == "" {
		return k.Endpoint
	}
	return k.Endpoint + "?" + k.Query
}

// IsZero reports whether the key was never set
func (k Key) IsZero() bool {
	return k.Endpoint == "" && k.Query == ""
}

// hash creates the storage key
func (k Key) hash() string {
	sum := sha256.Sum256([]byte(k.String()))
	return hex.EncodeToString(sum[:])
}

// Entry is a snapshot of one query
type Entry struct {
	Key       Key
	Status    Status
	Data      any
	Err       error
	UpdatedAt time.Time
}

// Resolved reports whether the query finished, successfully or not
func (e Entry) Resolved() bool {
	return e.Status != StatusPending
}

// FetchFunc performs the upstream call of a query
type FetchFunc func(ctx context.Context) (any, error)

// Recorder receives cache statistics
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheJoin()
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheHit()  {}
func (nopRecorder) RecordCacheMiss() {}
func (nopRecorder) RecordCacheJoin() {}

type call struct {
	entry Entry
	done  chan struct{}
}

// QueryCache deduplicates upstream queries by key and keeps their results
// for the configured TTL. Failed queries are kept as well and are not retried
// until they expire or are invalidated.
type QueryCache struct {
	enabled  bool
	cache    *cache.Cache
	mu       sync.Mutex
	inflight map[string]*call
	// observers holds one Observer per view slot
	observers *cache.Cache
	maxSize   int
	recorder  Recorder
	logger    *logrus.Logger
	now       func() time.Time
}

// NewQueryCache creates a new query cache
func NewQueryCache(cfg *config.Config, recorder Recorder, logger *logrus.Logger) *QueryCache {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	observerTTL := cfg.Server.SessionTTL
	if observerTTL <= 0 {
		observerTTL = time.Hour
	}

	return &QueryCache{
		enabled:   cfg.Cache.Enabled,
		cache:     cache.New(cfg.Cache.TTL, cfg.Cache.TTL*2),
		inflight:  make(map[string]*call),
		observers: cache.New(observerTTL, observerTTL/2),
		maxSize:   cfg.Cache.MaxSize,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Fetch returns the result of key, running fn only when no resolved or
// in-flight entry exists. Cancelling ctx stops waiting, not the fetch.
func (c *QueryCache) Fetch(ctx context.Context, key Key, fn FetchFunc) (any, error) {
	entry, cl := c.start(key, fn)
	if cl == nil {
		return entry.Data, entry.Err
	}

	select {
	case <-cl.done:
		return cl.entry.Data, cl.entry.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start begins fetching key in the background if needed and returns the
// current snapshot
func (c *QueryCache) Start(key Key, fn FetchFunc) Entry {
	entry, _ := c.start(key, fn)
	return entry
}

// Peek returns the current snapshot without fetching
func (c *QueryCache) Peek(key Key) (Entry, bool) {
	h := key.hash()

	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.inflight[h]; ok {
		return cl.entry, true
	}
	if val, found := c.cache.Get(h); found {
		return *val.(*Entry), true
	}
	return Entry{}, false
}

// Invalidate drops a resolved entry; an in-flight fetch keeps running
func (c *QueryCache) Invalidate(key Key) {
	c.cache.Delete(key.hash())
}

// Clear removes all resolved entries
func (c *QueryCache) Clear() {
	c.cache.Flush()
	c.logger.Info("Query cache cleared")
}

// ItemCount returns the number of resolved entries
func (c *QueryCache) ItemCount() int {
	return c.cache.ItemCount()
}

func (c *QueryCache) start(key Key, fn FetchFunc) (Entry, *call) {
	h := key.hash()

	c.mu.Lock()
	if val, found := c.cache.Get(h); found {
		c.mu.Unlock()
		c.recorder.RecordCacheHit()
		return *val.(*Entry), nil
	}
	if cl, ok := c.inflight[h]; ok {
		entry := cl.entry
		c.mu.Unlock()
		c.recorder.RecordCacheJoin()
		return entry, cl
	}

	entry := Entry{Key: key, Status: StatusPending, UpdatedAt: c.now()}
	cl := &call{entry: entry, done: make(chan struct{})}
	c.inflight[h] = cl
	c.mu.Unlock()
	c.recorder.RecordCacheMiss()

	c.logger.WithField("key", key.String()).Debug("Query started")
	go c.run(h, cl, fn)

	return entry, cl
}

func (c *QueryCache) run(h string, cl *call, fn FetchFunc) {
	data, err := fn(context.Background())

	c.mu.Lock()
	if err != nil {
		cl.entry.Status = StatusError
		cl.entry.Err = err
	} else {
		cl.entry.Status = StatusSuccess
		cl.entry.Data = data
	}
	cl.entry.UpdatedAt = c.now()
	delete(c.inflight, h)

	if c.enabled {
		// Check cache size
		if c.cache.ItemCount() >= c.maxSize {
			c.logger.Warn("Cache size limit reached, clearing old entries")
			c.cache.DeleteExpired()
		}
		entry := cl.entry
		c.cache.SetDefault(h, &entry)
	}
	c.mu.Unlock()
	close(cl.done)

	fields := logrus.Fields{
		"key":    cl.entry.Key.String(),
		"status": cl.entry.Status.String(),
	}
	if err != nil {
		c.logger.WithFields(fields).WithError(err).Warn("Query failed")
		return
	}
	c.logger.WithFields(fields).Debug("Query resolved")
}
