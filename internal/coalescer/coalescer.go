package coalescer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wtb-relay-go/internal/metrics"
)

const flushTimeout = 30 * time.Second

// Key identifies a published post in the sink
type Key struct {
	ChatID    int64
	MessageID int64
}

// Values is the latest state a post should show
type Values struct {
	ListingID    uint64
	Likes        int
	Dislikes     int
	StartPayload string
}

// FlushFunc performs the edit for one post
type FlushFunc func(ctx context.Context, key Key, v Values) error

type entry struct {
	latest    Values
	scheduled bool
	lastSent  *Values
}

// State is a read-only view of a pending entry
type State struct {
	Latest    Values
	Scheduled bool
	LastSent  *Values
}

// Coalescer collapses bursts of updates for the same post into at most one
// edit per delay window, always carrying the most recent values.
type Coalescer struct {
	delay   time.Duration
	flush   FlushFunc
	metrics *metrics.Metrics

	mu      sync.Mutex
	entries map[Key]*entry
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a coalescer that calls flush at most once per delay per key
func New(delay time.Duration, flush FlushFunc, m *metrics.Metrics) *Coalescer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coalescer{
		delay:   delay,
		flush:   flush,
		metrics: m,
		entries: make(map[Key]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Schedule records v as the latest state for key and arms the timer if the
// key is idle. It never blocks on the sink.
func (c *Coalescer) Schedule(key Key, v Values) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	e.latest = v
	if c.metrics != nil {
		c.metrics.EditsScheduled.Inc()
	}

	if e.scheduled {
		return
	}
	c.arm(key, e)
}

// arm must be called with mu held
func (c *Coalescer) arm(key Key, e *entry) {
	e.scheduled = true
	c.wg.Add(1)
	time.AfterFunc(c.delay, func() { c.fire(key) })
	if c.metrics != nil {
		c.metrics.PendingEdits.Set(float64(len(c.entries)))
	}
}

func (c *Coalescer) fire(key Key) {
	defer c.wg.Done()

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	snapshot := e.latest
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, flushTimeout)
	err := c.flush(ctx, key, snapshot)
	cancel()

	log := logrus.WithFields(logrus.Fields{
		"chat_id":    key.ChatID,
		"message_id": key.MessageID,
		"listing_id": snapshot.ListingID,
		"likes":      snapshot.Likes,
		"dislikes":   snapshot.Dislikes,
	})
	if err != nil {
		log.WithError(err).Warn("Coalesced edit failed")
		if c.metrics != nil {
			c.metrics.EditFailures.Inc()
		}
	} else {
		log.Debug("Coalesced edit sent")
		if c.metrics != nil {
			c.metrics.EditsFlushed.Inc()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		sent := snapshot
		e.lastSent = &sent
	}
	e.scheduled = false

	// updates that landed while the edit was in flight start a new cycle
	if e.latest != snapshot && !c.stopped {
		c.arm(key, e)
		return
	}
	delete(c.entries, key)
	if c.metrics != nil {
		c.metrics.PendingEdits.Set(float64(len(c.entries)))
	}
}

// Pending returns the number of keys with an armed timer
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.scheduled {
			n++
		}
	}
	return n
}

// Inspect returns the state held for key, if any
func (c *Coalescer) Inspect(key Key) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return State{}, false
	}
	return State{Latest: e.latest, Scheduled: e.scheduled, LastSent: e.lastSent}, true
}

// Stop rejects new schedules and waits for armed timers to flush
func (c *Coalescer) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	c.wg.Wait()
	c.cancel()
}
