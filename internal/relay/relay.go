package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/nerrad567/edgelink/internal/infrastructure/mqtt"
	"github.com/nerrad567/edgelink/internal/link"
)

const (
	// DefaultMaxPendingReplies bounds the table of unanswered inbound requests.
	DefaultMaxPendingReplies = 1024

	// defaultReplyTTLFactor scales the link message timeout into the reply TTL.
	defaultReplyTTLFactor = 2
)

// Bus is the local MQTT bus as seen by the relay. *mqtt.Client satisfies it.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger is the logging interface used by the relay.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Relay.
type Options struct {
	// Bus is the local MQTT connection. Required.
	Bus Bus

	// Link is the coordinator link. Required.
	Link *link.Link

	// Topics fixes the bus layout.
	Topics mqtt.Topics

	// QoS is used for every relay publish and subscription.
	QoS byte

	// ReplyTTL is how long an inbound request stays answerable.
	// Default: twice link.DefaultMessageTimeout.
	ReplyTTL time.Duration

	// MaxPendingReplies bounds unanswered inbound requests. The oldest is
	// evicted when full. Default: DefaultMaxPendingReplies.
	MaxPendingReplies int

	// Logger is optional.
	Logger Logger
}

// Relay bridges the coordinator link and the local bus.
//
// Coordinator messages are published on the inbound topics; plugin
// publishes on the outbound topics become link sends. Inbound requests are
// answered through single-use reply tokens held in an expiring LRU.
//
// Thread Safety: All methods are safe for concurrent use.
type Relay struct {
	bus    Bus
	link   *link.Link
	topics mqtt.Topics
	qos    byte
	logger Logger

	replies *expirable.LRU[string, *link.Responder]

	mu      sync.Mutex
	running bool
	unsubs  []func()
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	stats counters
}

type counters struct {
	inbound         atomic.Uint64
	outbound        atomic.Uint64
	repliesSent     atomic.Uint64
	repliesExpired  atomic.Uint64
	results         atomic.Uint64
	publishFailures atomic.Uint64
	rejected        atomic.Uint64
}

// Stats is a snapshot of relay counters.
type Stats struct {
	Inbound         uint64 `json:"inbound"`
	Outbound        uint64 `json:"outbound"`
	RepliesSent     uint64 `json:"replies_sent"`
	RepliesExpired  uint64 `json:"replies_expired"`
	RepliesPending  int    `json:"replies_pending"`
	Results         uint64 `json:"results"`
	PublishFailures uint64 `json:"publish_failures"`
	Rejected        uint64 `json:"rejected"`
}

// New creates a relay. Call Start to begin bridging.
func New(opts Options) (*Relay, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("%w: bus", ErrMissingOption)
	}
	if opts.Link == nil {
		return nil, fmt.Errorf("%w: link", ErrMissingOption)
	}

	ttl := opts.ReplyTTL
	if ttl <= 0 {
		ttl = defaultReplyTTLFactor * link.DefaultMessageTimeout
	}
	size := opts.MaxPendingReplies
	if size <= 0 {
		size = DefaultMaxPendingReplies
	}

	r := &Relay{
		bus:    opts.Bus,
		link:   opts.Link,
		topics: opts.Topics,
		qos:    opts.QoS,
		logger: opts.Logger,
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}

	// Eviction covers both expiry and overflow; an explicit Remove after a
	// reply also lands here, so answered tokens are skipped.
	r.replies = expirable.NewLRU(size, func(token string, resp *link.Responder) {
		if resp.Replied() {
			return
		}
		r.stats.repliesExpired.Add(1)
		r.logger.Warn("inbound request expired without a reply",
			"name", resp.Name(),
			"id", resp.ID(),
			"reply_to", token,
		)
	}, ttl)

	return r, nil
}

// Start subscribes to link events and to the outbound and reply topics.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrAlreadyStarted
	}

	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))

	r.unsubs = []func(){
		r.link.Subscribe(link.EventAnyMessage, r.onMessage),
		r.link.Subscribe(link.EventConnected, r.onLifecycle),
		r.link.Subscribe(link.EventDisconnected, r.onLifecycle),
		r.link.Subscribe(link.EventAttempting, r.onLifecycle),
	}

	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{r.topics.AllOutbound(), r.handleOutbound},
		{r.topics.AllReplies(), r.handleReply},
	}
	for i, sub := range subs {
		if err := r.bus.Subscribe(sub.topic, r.qos, sub.handler); err != nil {
			for _, done := range subs[:i] {
				r.bus.Unsubscribe(done.topic) //nolint:errcheck // Rolling back a failed start
			}
			r.releaseLink()
			r.cancel()
			return fmt.Errorf("subscribe to %s: %w", sub.topic, err)
		}
	}

	r.running = true
	r.logger.Info("relay started",
		"outbound", r.topics.AllOutbound(),
		"replies", r.topics.AllReplies(),
	)
	return nil
}

// Stop unsubscribes from the bus and the link and waits for in-flight
// result publishers. Outstanding reply tokens are discarded.
func (r *Relay) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.releaseLink()
	r.mu.Unlock()

	for _, topic := range []string{r.topics.AllOutbound(), r.topics.AllReplies()} {
		if err := r.bus.Unsubscribe(topic); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
			r.logger.Warn("bus unsubscribe failed", "topic", topic, "error", err)
		}
	}

	r.cancel()
	r.wg.Wait()
	r.replies.Purge()

	r.logger.Info("relay stopped")
}

func (r *Relay) releaseLink() {
	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil
}

// Stats returns a snapshot of relay counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Inbound:         r.stats.inbound.Load(),
		Outbound:        r.stats.outbound.Load(),
		RepliesSent:     r.stats.repliesSent.Load(),
		RepliesExpired:  r.stats.repliesExpired.Load(),
		RepliesPending:  r.replies.Len(),
		Results:         r.stats.results.Load(),
		PublishFailures: r.stats.publishFailures.Load(),
		Rejected:        r.stats.rejected.Load(),
	}
}

// onMessage publishes a coordinator message on the bus. Requests get a
// reply token.
func (r *Relay) onMessage(ev link.Event) {
	name, ok := link.MessageName(ev.Name)
	if !ok || !mqtt.ValidLevel(name) {
		r.stats.rejected.Add(1)
		r.logger.Warn("dropping inbound message with unroutable name", "event", ev.Name)
		return
	}

	msg := InboundMessage{Name: name, Data: ev.Data, ReceivedAt: ev.Time}
	if ev.Responder != nil {
		msg.ReplyTo = uuid.NewString()
		r.replies.Add(msg.ReplyTo, ev.Responder)
	}

	if err := r.publish(r.topics.Inbound(name), msg, false); err != nil {
		if msg.ReplyTo != "" {
			r.replies.Remove(msg.ReplyTo)
		}
		r.logger.Error("failed to publish inbound message", "name", name, "error", err)
		return
	}
	r.stats.inbound.Add(1)
}

// onLifecycle mirrors link state onto the retained link state topic.
func (r *Relay) onLifecycle(ev link.Event) {
	msg := LinkStateMessage{
		Event:       ev.Name,
		Attempt:     ev.Attempt,
		TransportID: ev.TransportID,
		Timestamp:   ev.Time,
	}
	switch ev.Name {
	case link.EventConnected:
		msg.State = link.StateOpen.String()
	case link.EventAttempting:
		msg.State = link.StateConnecting.String()
	default:
		msg.State = link.StateDisconnected.String()
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}

	if err := r.publish(r.topics.LinkState(), msg, true); err != nil {
		r.logger.Warn("failed to publish link state", "state", msg.State, "error", err)
	}
}

// handleReply answers the inbound request named by the reply token.
func (r *Relay) handleReply(topic string, payload []byte) error {
	token, ok := r.topics.ParseReply(topic)
	if !ok {
		r.stats.rejected.Add(1)
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	var msg ReplyMessage
	if err := decodeObject(payload, &msg); err != nil {
		r.stats.rejected.Add(1)
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	resp, ok := r.replies.Peek(token)
	if !ok {
		r.stats.rejected.Add(1)
		return fmt.Errorf("%w: %s", ErrUnknownReply, token)
	}

	err := resp.Reply(msg.Data)
	r.replies.Remove(token)
	if err != nil {
		return fmt.Errorf("reply to %s (id %d): %w", resp.Name(), resp.ID(), err)
	}
	r.stats.repliesSent.Add(1)
	return nil
}

// handleOutbound turns a plugin publish into a link send.
func (r *Relay) handleOutbound(topic string, payload []byte) error {
	mode, name, ok := r.topics.ParseOutbound(topic)
	if !ok {
		r.stats.rejected.Add(1)
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	var msg OutboundMessage
	if err := decodeObject(payload, &msg); err != nil {
		r.stats.rejected.Add(1)
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if msg.ReplyTo != "" && !mqtt.ValidLevel(msg.ReplyTo) {
		r.stats.rejected.Add(1)
		return fmt.Errorf("%w: reply_to %q", ErrInvalidPayload, msg.ReplyTo)
	}

	// A nil json.RawMessage leaves "d" off the frame.
	data := msg.Data

	r.stats.outbound.Add(1)

	switch mode {
	case mqtt.ModeSend:
		return r.link.Send(name, data)
	case mqtt.ModeReliable:
		return r.link.SendReliable(name, data)
	case mqtt.ModeRequest:
		r.awaitResult(r.link.SendRequest(name, data), msg.ReplyTo)
	case mqtt.ModeRequestReliable:
		r.awaitResult(r.link.SendRequestReliable(name, data), msg.ReplyTo)
	}
	return nil
}

// awaitResult publishes the call's outcome on the result topic once it
// resolves. Without a reply_to the outcome is only logged.
func (r *Relay) awaitResult(call *link.Call, replyTo string) {
	ctx := r.ctx
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		select {
		case <-call.Done():
		case <-ctx.Done():
			return
		}

		data, err := call.Result()
		if replyTo == "" {
			if err != nil {
				r.logger.Debug("request without reply_to failed", "name", call.Name(), "durable", call.Durable(), "error", err)
			}
			return
		}

		msg := ResultMessage{ID: call.ID(), Name: call.Name(), Data: data}
		if err != nil {
			msg.Data = nil
			msg.Error = err.Error()
		}
		if err := r.publish(r.topics.Result(replyTo), msg, false); err != nil {
			r.logger.Error("failed to publish request result", "name", call.Name(), "durable", call.Durable(), "reply_to", replyTo, "error", err)
			return
		}
		r.stats.results.Add(1)
	}()
}

func (r *Relay) publish(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		r.stats.publishFailures.Add(1)
		return fmt.Errorf("encoding %s: %w", topic, err)
	}
	if err := r.bus.Publish(topic, payload, r.qos, retained); err != nil {
		r.stats.publishFailures.Add(1)
		return err
	}
	return nil
}
