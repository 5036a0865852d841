package link

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// heartbeatFrame is the exact liveness frame written while connected.
var heartbeatFrame = []byte(`{"t":"hb"}`)

// Kind classifies a decoded frame.
type Kind int

const (
	KindNotification Kind = iota
	KindRequest
	KindResponse
	KindHeartbeat
)

// String returns the kind name used in log output.
func (k Kind) String() string {
	switch k {
	case KindNotification:
		return "notification"
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Envelope is one logical message on the wire.
//
// A response is identified by ReplyTo being non-zero; correlation ids are
// never zero so the zero value means "not a response".
type Envelope struct {
	// Name is the message name ("m"). Empty on responses.
	Name string

	// Data is the raw JSON payload ("d"). Nil encodes as absent.
	Data json.RawMessage

	// ID is the correlation id ("i") assigned by the sender.
	ID uint64

	// Request marks a frame that expects a reply ("r": true).
	Request bool

	// ReplyTo is the id of the request this frame answers ("r": "<id>").
	ReplyTo uint64

	heartbeat bool
}

// Kind reports how the envelope should be routed.
func (e Envelope) Kind() Kind {
	switch {
	case e.heartbeat:
		return KindHeartbeat
	case e.ReplyTo != 0:
		return KindResponse
	case e.Request:
		return KindRequest
	default:
		return KindNotification
	}
}

type wireEnvelope struct {
	M string          `json:"m,omitempty"`
	D json.RawMessage `json:"d,omitempty"`
	I uint64          `json:"i,omitempty"`
	R json.RawMessage `json:"r,omitempty"`
	T string          `json:"t,omitempty"`
}

var (
	jsonTrue  = json.RawMessage("true")
	errZeroID = errors.New("zero is not a valid id")
)

// Encode serialises an envelope to its wire form.
//
// Responses carry the request id in "r" as a decimal string, matching what
// the coordinator echoes back.
func Encode(e Envelope) ([]byte, error) {
	if e.heartbeat {
		return heartbeatFrame, nil
	}

	w := wireEnvelope{M: e.Name, D: e.Data, I: e.ID}
	switch {
	case e.ReplyTo != 0:
		w.R = json.RawMessage(strconv.Quote(strconv.FormatUint(e.ReplyTo, 10)))
		w.I = 0
	case e.Request:
		if e.Name == "" {
			return nil, ErrInvalidName
		}
		w.R = jsonTrue
	case e.Name == "":
		return nil, ErrInvalidName
	}

	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return data, nil
}

// Decode parses one inbound frame.
//
// Any frame that is not valid JSON, carries an unreadable "r", or has no
// routable content returns an error wrapping ErrMalformedFrame.
func Decode(frame []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(frame, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	if w.T == "hb" {
		return Envelope{heartbeat: true}, nil
	}

	e := Envelope{Name: w.M, Data: w.D, ID: w.I}

	r := bytes.TrimSpace(w.R)
	switch {
	case len(r) == 0, bytes.Equal(r, []byte("null")), bytes.Equal(r, []byte("false")):
	case bytes.Equal(r, jsonTrue):
		e.Request = true
	default:
		id, err := parseReplyID(r)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: reply id %s: %w", ErrMalformedFrame, r, err)
		}
		e.ReplyTo = id
	}

	switch e.Kind() {
	case KindRequest:
		if e.Name == "" || e.ID == 0 {
			return Envelope{}, fmt.Errorf("%w: request without name or id", ErrMalformedFrame)
		}
	case KindNotification:
		if e.Name == "" {
			return Envelope{}, fmt.Errorf("%w: frame has no name, reply or type", ErrMalformedFrame)
		}
	}

	return e, nil
}

// parseReplyID accepts the reply id either as a JSON string or a bare number.
func parseReplyID(raw []byte) (uint64, error) {
	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		text = s
	}
	id, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, errZeroID
	}
	return id, nil
}

// marshalPayload converts caller data into the raw "d" field.
func marshalPayload(data any) (json.RawMessage, error) {
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return raw, nil
}
