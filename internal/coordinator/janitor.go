package coordinator

import (
	"container/heap"
	"sync"
	"time"

	"github.com/rudransh-shrivastava/peer-link/internal/protocol"
)

type entryKind int

const (
	entryRequest entryKind = iota
	entrySession
)

type deadlineEntry struct {
	at   time.Time
	kind entryKind
	id   string
}

type deadlineHeap []*deadlineEntry

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h deadlineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap) Push(x interface{}) { *h = append(*h, x.(*deadlineEntry)) }
func (h *deadlineHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}

// janitor holds the min-heap of expiry deadlines. Entries are lazy: a
// popped deadline is re-validated against live state, and sessions
// whose activity moved the real deadline forward get re-pushed instead
// of acted on.
type janitor struct {
	mu   sync.Mutex
	heap deadlineHeap
	wake chan struct{}
}

func newJanitor() *janitor {
	j := &janitor{
		wake: make(chan struct{}, 1),
	}
	heap.Init(&j.heap)
	return j
}

func (j *janitor) schedule(kind entryKind, id string, at time.Time) {
	j.mu.Lock()
	heap.Push(&j.heap, &deadlineEntry{at: at, kind: kind, id: id})
	j.mu.Unlock()

	select {
	case j.wake <- struct{}{}:
	default:
	}
}

func (j *janitor) next() (time.Time, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.heap) == 0 {
		return time.Time{}, false
	}
	return j.heap[0].at, true
}

func (j *janitor) popDue(now time.Time) []*deadlineEntry {
	j.mu.Lock()
	defer j.mu.Unlock()

	var due []*deadlineEntry
	for len(j.heap) > 0 && !j.heap[0].at.After(now) {
		due = append(due, heap.Pop(&j.heap).(*deadlineEntry))
	}
	return due
}

// sweep resolves every due deadline and reaps devices whose heartbeats
// went silent. All actions go through the same mutating paths external
// callers use; the sweep never touches state directly.
func (c *Coordinator) sweep(now time.Time) {
	for _, entry := range c.janitor.popDue(now) {
		switch entry.kind {
		case entryRequest:
			c.expireRequest(entry.id)
		case entrySession:
			c.sweepSession(entry.id, now)
		}
	}

	for _, id := range c.staleDevices(now) {
		c.logger.WithField("device", id).Warn("Heartbeat timeout, disabling device")
		c.Disable(id)
	}
}

func (c *Coordinator) sweepSession(sessionID string, now time.Time) {
	c.mu.Lock()
	sess, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return
	}
	if sess.State.Terminal() {
		// Terminal sessions are only kept so late relay calls get a
		// precise rejection; reap them on their final deadline.
		delete(c.sessions, sessionID)
		c.mu.Unlock()
		return
	}
	if sess.State == StateEstablished {
		c.mu.Unlock()
		return
	}

	deadline := sess.LastActivity.Add(c.cfg.SignalingTTL)
	if deadline.After(now) {
		c.janitor.schedule(entrySession, sessionID, deadline)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.TriggerFallback(sessionID, protocol.ReasonTimeout)
}

func (c *Coordinator) staleDevices(now time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stale []string
	for id, d := range c.devices {
		if now.Sub(d.LastHeartbeat) > c.cfg.HeartbeatTimeout {
			stale = append(stale, id)
		}
	}
	return stale
}
