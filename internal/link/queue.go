package link

import "time"

// Intent records which reliable operation produced a queued frame.
type Intent int

const (
	IntentReliable Intent = iota
	IntentRequestReliable
)

// String returns the intent name used in log output.
func (i Intent) String() string {
	if i == IntentRequestReliable {
		return "request-reliable"
	}
	return "reliable"
}

// queuedFrame is one pending reliable delivery.
type queuedFrame struct {
	id       uint64
	name     string
	frame    []byte
	intent   Intent
	queuedAt time.Time
}

// reliabilityQueue is the FIFO backlog of reliable sends.
//
// Entries leave only from the head and only after the socket accepted the
// frame, or all at once when the link is stopped.
type reliabilityQueue struct {
	items []queuedFrame
}

func (q *reliabilityQueue) enqueue(f queuedFrame) {
	if f.queuedAt.IsZero() {
		f.queuedAt = time.Now()
	}
	q.items = append(q.items, f)
}

func (q *reliabilityQueue) len() int {
	return len(q.items)
}

// contains reports whether a frame with the given correlation id is queued.
func (q *reliabilityQueue) contains(id uint64) bool {
	for _, f := range q.items {
		if f.id == id {
			return true
		}
	}
	return false
}

// flush writes queued frames in order, removing each only after send
// succeeds. It stops at the first failure and leaves that frame at the head.
// delivered is called for every frame that left the queue.
func (q *reliabilityQueue) flush(send func([]byte) error, delivered func(queuedFrame)) (int, error) {
	sent := 0
	for len(q.items) > 0 {
		head := q.items[0]
		if err := send(head.frame); err != nil {
			return sent, err
		}
		q.items[0] = queuedFrame{}
		q.items = q.items[1:]
		sent++
		if delivered != nil {
			delivered(head)
		}
	}
	q.items = nil
	return sent, nil
}

// drain empties the queue and returns what it held.
func (q *reliabilityQueue) drain() []queuedFrame {
	items := q.items
	q.items = nil
	return items
}

// oldest returns when the head entry was queued.
func (q *reliabilityQueue) oldest() (time.Time, bool) {
	if len(q.items) == 0 {
		return time.Time{}, false
	}
	return q.items[0].queuedAt, true
}
