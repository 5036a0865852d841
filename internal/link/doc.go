// Package link implements the edge device's persistent connection to the
// cloud coordinator.
//
// A single full-duplex socket carries correlated request/response traffic,
// fire-and-forget notifications and liveness heartbeats. The package owns the
// connection lifecycle (connect, detect failure, back off, reconnect), message
// framing and correlation, delivery guarantees, and heartbeat liveness.
//
// # Architecture
//
//	Link (connection manager)
//	 ├── Dialer / Socket        gorilla/websocket by default
//	 ├── Backoff                ×1.5, 500ms..5s, jittered, never gives up
//	 ├── IDAllocator            1..MaxSafeInteger, wraps to 1
//	 ├── tracker                volatile + durable pending requests
//	 ├── reaper                 two-snapshot stale sweep of volatile requests
//	 ├── reliabilityQueue       FIFO backlog, drained on every Open
//	 ├── heartbeat              {"t":"hb"} while connected
//	 └── dispatcher             ordered delivery of events to subscribers
//
// # Wire Format
//
// Frames are JSON objects:
//
//	{"m":"name","d":<payload>,"i":42}            notification
//	{"m":"name","d":<payload>,"i":42,"r":true}   request, expects a reply
//	{"d":<result>,"r":"42"}                      response to request 42
//	{"t":"hb"}                                   heartbeat
//
// # Send Guarantees
//
//	Send                 best effort, error returned synchronously
//	SendReliable         queued and redelivered across disconnects
//	SendRequest          future resolved by response, timeout or disconnect
//	SendRequestReliable  future resolved only by response, Abandon or Stop
//
// # Usage
//
//	l, err := link.New(link.DefaultConfig("wss://coordinator.example/ws"))
//	if err != nil {
//	    return err
//	}
//	l.Subscribe(link.MessageEvent("device.command"), func(ev link.Event) {
//	    if ev.Responder != nil {
//	        ev.Responder.Reply(map[string]bool{"ok": true})
//	    }
//	})
//	if err := l.Start(ctx, headers, nil); err != nil {
//	    return err
//	}
//	defer l.Stop()
//
//	data, err := l.SendRequest("device.list", nil).Wait(ctx)
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Event handlers run on a
// single dispatch goroutine in arrival order and must not block; they must
// not call Stop directly (use a goroutine).
package link
