package link

import (
	"errors"
	"testing"
)

func TestReliabilityQueue_FlushInOrder(t *testing.T) {
	var q reliabilityQueue
	for i, name := range []string{"a", "b", "c"} {
		q.enqueue(queuedFrame{id: uint64(i + 1), name: name, frame: []byte(name)})
	}

	var sent []string
	var delivered []uint64
	n, err := q.flush(func(frame []byte) error {
		sent = append(sent, string(frame))
		return nil
	}, func(f queuedFrame) {
		delivered = append(delivered, f.id)
	})
	if err != nil {
		t.Fatalf("flush() error: %v", err)
	}
	if n != 3 {
		t.Errorf("flush() sent %d, want 3", n)
	}
	if got := len(sent); got != 3 || sent[0] != "a" || sent[1] != "b" || sent[2] != "c" {
		t.Errorf("sent = %v, want [a b c]", sent)
	}
	if len(delivered) != 3 || delivered[0] != 1 || delivered[2] != 3 {
		t.Errorf("delivered = %v, want [1 2 3]", delivered)
	}
	if q.len() != 0 {
		t.Errorf("len() = %d after flush, want 0", q.len())
	}
}

func TestReliabilityQueue_FlushStopsOnFailure(t *testing.T) {
	var q reliabilityQueue
	q.enqueue(queuedFrame{id: 1, frame: []byte("a")})
	q.enqueue(queuedFrame{id: 2, frame: []byte("b")})
	q.enqueue(queuedFrame{id: 3, frame: []byte("c")})

	errBroken := errors.New("broken pipe")
	calls := 0
	n, err := q.flush(func(frame []byte) error {
		calls++
		if string(frame) == "b" {
			return errBroken
		}
		return nil
	}, nil)

	if !errors.Is(err, errBroken) {
		t.Fatalf("flush() error = %v, want %v", err, errBroken)
	}
	if n != 1 {
		t.Errorf("flush() sent %d, want 1", n)
	}
	if calls != 2 {
		t.Errorf("send called %d times, want 2", calls)
	}
	if q.len() != 2 {
		t.Fatalf("len() = %d, want 2", q.len())
	}
	if !q.contains(2) || !q.contains(3) || q.contains(1) {
		t.Error("failed frame must stay at the head with its successors")
	}

	var sent []string
	if _, err := q.flush(func(frame []byte) error {
		sent = append(sent, string(frame))
		return nil
	}, nil); err != nil {
		t.Fatalf("second flush() error: %v", err)
	}
	if len(sent) != 2 || sent[0] != "b" || sent[1] != "c" {
		t.Errorf("second flush sent %v, want [b c]", sent)
	}
}

func TestReliabilityQueue_Drain(t *testing.T) {
	var q reliabilityQueue
	q.enqueue(queuedFrame{id: 1})
	q.enqueue(queuedFrame{id: 2, intent: IntentRequestReliable})

	if _, ok := q.oldest(); !ok {
		t.Error("oldest() reported empty queue")
	}
	items := q.drain()
	if len(items) != 2 {
		t.Errorf("drain() returned %d items, want 2", len(items))
	}
	if q.len() != 0 {
		t.Errorf("len() = %d after drain, want 0", q.len())
	}
	if _, ok := q.oldest(); ok {
		t.Error("oldest() on empty queue reported an entry")
	}
}
