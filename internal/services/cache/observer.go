package cache

import (
	"context"
	"sync"
	"time"
)

// Observer tracks the one query a view slot currently displays. Results of
// queries the slot has moved away from are dropped on delivery.
type Observer struct {
	qc      *QueryCache
	mu      sync.Mutex
	active  Key
	last    Entry
	changed chan struct{}
}

// Observer returns the observer of slot, creating it on first use
func (c *QueryCache) Observer(slot string) *Observer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if val, found := c.observers.Get(slot); found {
		o := val.(*Observer)
		c.observers.SetDefault(slot, o)
		return o
	}

	o := &Observer{qc: c, changed: make(chan struct{})}
	c.observers.SetDefault(slot, o)
	return o
}

// Observe makes key the active query of the slot and starts fetching it
func (o *Observer) Observe(key Key, fn FetchFunc) Entry {
	o.mu.Lock()
	if o.active != key {
		o.active = key
		o.notifyLocked()
	}
	o.mu.Unlock()

	entry, cl := o.qc.start(key, fn)
	if cl == nil {
		o.deliver(entry)
		return entry
	}

	go func() {
		<-cl.done
		o.deliver(cl.entry)
	}()
	return entry
}

// Active returns the key the slot currently displays
func (o *Observer) Active() Key {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Current returns the snapshot of the active query
func (o *Observer) Current() Entry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentLocked()
}

// Wait blocks until the active query resolves or d elapses and returns the
// snapshot of whatever query is active at that point
func (o *Observer) Wait(ctx context.Context, d time.Duration) Entry {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	for {
		o.mu.Lock()
		cur := o.currentLocked()
		ch := o.changed
		o.mu.Unlock()

		if cur.Resolved() {
			return cur
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return cur
		}
	}
}

// deliver stores a resolved entry unless the slot moved on to another key
func (o *Observer) deliver(e Entry) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if e.Key != o.active {
		return false
	}
	o.last = e
	o.notifyLocked()
	return true
}

func (o *Observer) currentLocked() Entry {
	if o.last.Key == o.active && !o.active.IsZero() {
		return o.last
	}
	return Entry{Key: o.active, Status: StatusPending}
}

func (o *Observer) notifyLocked() {
	close(o.changed)
	o.changed = make(chan struct{})
}
