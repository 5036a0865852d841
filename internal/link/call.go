package link

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

// Call is the future returned by SendRequest and SendRequestReliable.
// It resolves exactly once with either the response payload or an error.
type Call struct {
	id      uint64
	name    string
	durable bool

	once sync.Once
	done chan struct{}
	data json.RawMessage
	err  error
}

func newCall(name string, durable bool) *Call {
	return &Call{name: name, durable: durable, done: make(chan struct{})}
}

// failedCall returns a call that is already resolved with err.
func failedCall(name string, durable bool, err error) *Call {
	c := newCall(name, durable)
	c.resolve(nil, err)
	return c
}

func (c *Call) resolve(data json.RawMessage, err error) {
	c.once.Do(func() {
		c.data = data
		c.err = err
		close(c.done)
	})
}

// ID returns the correlation id. Zero if the request was never assigned one.
func (c *Call) ID() uint64 { return c.id }

// Name returns the request name.
func (c *Call) Name() string { return c.name }

// Durable reports whether the request survives disconnects.
func (c *Call) Durable() bool { return c.durable }

// Done is closed once the call has resolved.
func (c *Call) Done() <-chan struct{} { return c.done }

// Wait blocks until the call resolves or ctx is done. Cancelling ctx does not
// abandon the request; use Link.Abandon for that.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.data, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome without blocking, or ErrPending if unresolved.
func (c *Call) Result() (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.data, c.err
	default:
		return nil, ErrPending
	}
}

// Decode waits for the response and unmarshals it into v.
func (c *Call) Decode(ctx context.Context, v any) error {
	data, err := c.Wait(ctx)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s response: %w", c.name, err)
	}
	return nil
}

// Responder answers one inbound request. Only the first Reply is sent.
type Responder struct {
	id      uint64
	name    string
	link    *Link
	replied atomic.Bool
}

// ID returns the correlation id of the request being answered.
func (r *Responder) ID() uint64 { return r.id }

// Name returns the name of the request being answered.
func (r *Responder) Name() string { return r.name }

// Replied reports whether a reply has already been sent.
func (r *Responder) Replied() bool { return r.replied.Load() }

// Reply sends data as the response. Replies are best effort: if the socket is
// down the error is returned and the reply is lost.
func (r *Responder) Reply(data any) error {
	raw, err := marshalPayload(data)
	if err != nil {
		return err
	}
	if !r.replied.CompareAndSwap(false, true) {
		return ErrAlreadyReplied
	}
	return r.link.reply(r.id, raw)
}
