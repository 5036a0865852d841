package relay

import "errors"

// Sentinel errors returned by bus handlers and the relay lifecycle.
var (
	// ErrAlreadyStarted is returned by Start on a running relay.
	ErrAlreadyStarted = errors.New("relay: already started")

	// ErrInvalidTopic is returned for a bus topic outside the relay layout.
	ErrInvalidTopic = errors.New("relay: invalid topic")

	// ErrInvalidPayload is returned when a bus payload is not the expected JSON object.
	ErrInvalidPayload = errors.New("relay: invalid payload")

	// ErrUnknownReply is returned when a reply token has expired or was already used.
	ErrUnknownReply = errors.New("relay: unknown or expired reply token")

	// ErrMissingOption is returned by New when a required option is nil.
	ErrMissingOption = errors.New("relay: missing required option")
)
