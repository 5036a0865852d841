package relay

import (
	"encoding/json"
	"time"
)

// InboundMessage is published on Topics.Inbound for every coordinator
// message. ReplyTo is set only for requests; publishing a ReplyMessage on
// Topics.Reply(ReplyTo) answers it.
type InboundMessage struct {
	Name       string          `json:"name"`
	Data       json.RawMessage `json:"data,omitempty"`
	ReplyTo    string          `json:"reply_to,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// ReplyMessage answers an inbound request.
type ReplyMessage struct {
	Data json.RawMessage `json:"data,omitempty"`
}

// OutboundMessage is published by plugins on Topics.Outbound. ReplyTo
// names the result topic for the request modes.
type OutboundMessage struct {
	Data    json.RawMessage `json:"data,omitempty"`
	ReplyTo string          `json:"reply_to,omitempty"`
}

// ResultMessage carries the outcome of an outbound request. Exactly one
// of Data and Error is meaningful.
type ResultMessage struct {
	ID    uint64          `json:"id,omitempty"`
	Name  string          `json:"name"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// LinkStateMessage is published retained on Topics.LinkState whenever the
// coordinator link changes state.
type LinkStateMessage struct {
	State       string    `json:"state"`
	Event       string    `json:"event"`
	Attempt     int       `json:"attempt,omitempty"`
	Error       string    `json:"error,omitempty"`
	TransportID string    `json:"transport_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// decodeObject unmarshals a bus payload into v. An empty payload leaves v
// at its zero value.
func decodeObject(payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, v)
}
