package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "edgelink"

// Outbound modes map a local bus publish onto one of the four link sends.
const (
	ModeSend            = "send"
	ModeReliable        = "reliable"
	ModeRequest         = "request"
	ModeRequestReliable = "request-reliable"
)

// Topics builds the local bus topic hierarchy under a prefix:
//
//	{prefix}/status                       bus client presence (retained, LWT)
//	{prefix}/link/state                   coordinator link state (retained)
//	{prefix}/inbound/{name}               messages from the coordinator
//	{prefix}/outbound/{mode}/{name}       messages to the coordinator
//	{prefix}/reply/{token}                answers to inbound requests
//	{prefix}/result/{reply_to}            outcomes of outbound requests
//
// Using these helpers keeps topic naming consistent between the relay and
// the plugins on the other side of the broker.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// Status returns the retained lifecycle topic.
//
// Example: edgelink/status
func (t Topics) Status() string {
	return t.prefix() + "/status"
}

// LinkState returns the retained topic carrying the coordinator link state.
//
// Example: edgelink/link/state
func (t Topics) LinkState() string {
	return t.prefix() + "/link/state"
}

// Inbound returns the topic a coordinator message named name is published on.
//
// Example: edgelink/inbound/device.list
func (t Topics) Inbound(name string) string {
	return fmt.Sprintf("%s/inbound/%s", t.prefix(), name)
}

// Outbound returns the topic plugins publish on to send name with mode.
//
// Example: edgelink/outbound/request/device.state
func (t Topics) Outbound(mode, name string) string {
	return fmt.Sprintf("%s/outbound/%s/%s", t.prefix(), mode, name)
}

// Reply returns the topic that answers the inbound request holding token.
//
// Example: edgelink/reply/4a3c...
func (t Topics) Reply(token string) string {
	return fmt.Sprintf("%s/reply/%s", t.prefix(), token)
}

// Result returns the topic an outbound request's outcome is published on.
//
// Example: edgelink/result/plugin-7-42
func (t Topics) Result(replyTo string) string {
	return fmt.Sprintf("%s/result/%s", t.prefix(), replyTo)
}

// AllInbound returns a wildcard matching every inbound message.
func (t Topics) AllInbound() string {
	return t.prefix() + "/inbound/#"
}

// AllOutbound returns a wildcard matching every outbound publish.
func (t Topics) AllOutbound() string {
	return t.prefix() + "/outbound/#"
}

// AllReplies returns a wildcard matching every reply.
func (t Topics) AllReplies() string {
	return t.prefix() + "/reply/+"
}

// ParseOutbound splits an outbound topic into its mode and message name.
// Names may contain further "/" levels.
func (t Topics) ParseOutbound(topic string) (mode, name string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix()+"/outbound/")
	if !found {
		return "", "", false
	}
	mode, name, found = strings.Cut(rest, "/")
	if !found || name == "" {
		return "", "", false
	}
	switch mode {
	case ModeSend, ModeReliable, ModeRequest, ModeRequestReliable:
		return mode, name, true
	default:
		return "", "", false
	}
}

// ParseReply extracts the token from a reply topic.
func (t Topics) ParseReply(topic string) (string, bool) {
	token, found := strings.CutPrefix(topic, t.prefix()+"/reply/")
	if !found || token == "" || strings.Contains(token, "/") {
		return "", false
	}
	return token, true
}

// ValidLevel reports whether s can be used inside a topic that is published
// to. MQTT forbids wildcards and NUL in published topic names.
func ValidLevel(s string) bool {
	return s != "" && !strings.ContainsAny(s, "+#\x00")
}
