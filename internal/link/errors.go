package link

import "errors"

// Domain errors for the link package.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when a write is attempted without an open socket.
	ErrNotConnected = errors.New("link: not connected")

	// ErrConnectFailed wraps dial and handshake failures.
	ErrConnectFailed = errors.New("link: connection failed")

	// ErrSendFailed is returned when the socket rejects a frame.
	ErrSendFailed = errors.New("link: send failed")

	// ErrTimeout is delivered to a volatile request reaped without a response.
	ErrTimeout = errors.New("link: request timed out")

	// ErrConnectionLost is delivered to volatile requests outstanding when
	// the socket drops.
	ErrConnectionLost = errors.New("link: connection lost")

	// ErrStopped is delivered to every outstanding request when Stop is called.
	ErrStopped = errors.New("link: stopped")

	// ErrAbandoned is delivered to a request the caller gave up on via Abandon.
	ErrAbandoned = errors.New("link: request abandoned")

	// ErrAlreadyStarted is returned by Start on a running link.
	ErrAlreadyStarted = errors.New("link: already started")

	// ErrAlreadyReplied is returned by a Responder used more than once.
	ErrAlreadyReplied = errors.New("link: response already sent")

	// ErrMalformedFrame is returned when an inbound frame cannot be decoded.
	ErrMalformedFrame = errors.New("link: malformed frame")

	// ErrInvalidName is returned when a message name is empty.
	ErrInvalidName = errors.New("link: message name cannot be empty")

	// ErrIDSpaceExhausted is returned when every correlation id is held by a
	// pending request.
	ErrIDSpaceExhausted = errors.New("link: no free correlation id")

	// ErrPending is returned by Call.Result before the call has resolved.
	ErrPending = errors.New("link: call still pending")

	// ErrInvalidConfig is returned by New when the configuration is unusable.
	ErrInvalidConfig = errors.New("link: invalid configuration")
)
