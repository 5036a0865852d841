package link

import (
	"encoding/json"
	"sort"
	"time"
)

// completion resolves a pending request. It is invoked exactly once.
type completion func(data json.RawMessage, err error)

// pendingRequest is an outstanding request awaiting its response.
type pendingRequest struct {
	id       uint64
	name     string
	durable  bool
	frame    []byte
	complete completion

	// seq orders durable requests by registration for requeueing.
	seq uint64

	// queued is true while a copy of the frame sits in the reliability queue.
	queued bool

	createdAt time.Time
}

// tracker holds the two correlation tables.
//
// Volatile requests are subject to the reaper and are failed on disconnect.
// Durable requests survive both and leave only on response, Abandon or Stop.
type tracker struct {
	volatile map[uint64]*pendingRequest
	durable  map[uint64]*pendingRequest
	seq      uint64
}

func newTracker() *tracker {
	return &tracker{
		volatile: make(map[uint64]*pendingRequest),
		durable:  make(map[uint64]*pendingRequest),
	}
}

// register records a new pending request. The id must not already be tracked.
func (t *tracker) register(p *pendingRequest) {
	t.seq++
	p.seq = t.seq
	if p.createdAt.IsZero() {
		p.createdAt = time.Now()
	}
	if p.durable {
		t.durable[p.id] = p
		return
	}
	t.volatile[p.id] = p
}

func (t *tracker) has(id uint64) bool {
	if _, ok := t.volatile[id]; ok {
		return true
	}
	_, ok := t.durable[id]
	return ok
}

func (t *tracker) get(id uint64) (*pendingRequest, bool) {
	if p, ok := t.volatile[id]; ok {
		return p, true
	}
	p, ok := t.durable[id]
	return p, ok
}

// take removes and returns the request with the given id, looking in the
// volatile table first.
func (t *tracker) take(id uint64) (*pendingRequest, bool) {
	if p, ok := t.volatile[id]; ok {
		delete(t.volatile, id)
		return p, true
	}
	if p, ok := t.durable[id]; ok {
		delete(t.durable, id)
		return p, true
	}
	return nil, false
}

// resolve completes a request with its response payload.
// It reports false when no request with that id is pending.
func (t *tracker) resolve(id uint64, data json.RawMessage) bool {
	p, ok := t.take(id)
	if !ok {
		return false
	}
	p.complete(data, nil)
	return true
}

// fail completes a request with an error.
func (t *tracker) fail(id uint64, err error) bool {
	p, ok := t.take(id)
	if !ok {
		return false
	}
	p.complete(nil, err)
	return true
}

// failVolatile fails every volatile request and returns how many there were.
func (t *tracker) failVolatile(err error) int {
	n := len(t.volatile)
	for _, p := range t.sorted(t.volatile) {
		delete(t.volatile, p.id)
		p.complete(nil, err)
	}
	return n
}

// failAll fails every request in both tables.
func (t *tracker) failAll(err error) int {
	n := t.failVolatile(err)
	for _, p := range t.sorted(t.durable) {
		delete(t.durable, p.id)
		p.complete(nil, err)
		n++
	}
	return n
}

// unqueuedDurable returns durable requests that were written to a socket but
// have no queued copy, in registration order.
func (t *tracker) unqueuedDurable() []*pendingRequest {
	var out []*pendingRequest
	for _, p := range t.sorted(t.durable) {
		if !p.queued {
			out = append(out, p)
		}
	}
	return out
}

func (t *tracker) len() (volatile, durable int) {
	return len(t.volatile), len(t.durable)
}

func (t *tracker) sorted(table map[uint64]*pendingRequest) []*pendingRequest {
	out := make([]*pendingRequest, 0, len(table))
	for _, p := range table {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}
