package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{Prefix: "site7"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"status", topics.Status(), "site7/status"},
		{"link state", topics.LinkState(), "site7/link/state"},
		{"inbound", topics.Inbound("device.list"), "site7/inbound/device.list"},
		{"outbound", topics.Outbound(ModeRequest, "device.state"), "site7/outbound/request/device.state"},
		{"reply", topics.Reply("abc"), "site7/reply/abc"},
		{"result", topics.Result("plugin-1"), "site7/result/plugin-1"},
		{"all inbound", topics.AllInbound(), "site7/inbound/#"},
		{"all outbound", topics.AllOutbound(), "site7/outbound/#"},
		{"all replies", topics.AllReplies(), "site7/reply/+"},
		{"default prefix", Topics{}.Status(), "edgelink/status"},
		{"trimmed prefix", Topics{Prefix: "/a/b/"}.Status(), "a/b/status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseOutbound(t *testing.T) {
	topics := Topics{Prefix: "edgelink"}

	tests := []struct {
		topic    string
		wantMode string
		wantName string
		wantOK   bool
	}{
		{"edgelink/outbound/send/device.state", ModeSend, "device.state", true},
		{"edgelink/outbound/reliable/a", ModeReliable, "a", true},
		{"edgelink/outbound/request/a/b", ModeRequest, "a/b", true},
		{"edgelink/outbound/request-reliable/x", ModeRequestReliable, "x", true},
		{"edgelink/outbound/shout/x", "", "", false},
		{"edgelink/outbound/send/", "", "", false},
		{"edgelink/outbound/send", "", "", false},
		{"other/outbound/send/x", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			mode, name, ok := topics.ParseOutbound(tt.topic)
			if mode != tt.wantMode || name != tt.wantName || ok != tt.wantOK {
				t.Errorf("ParseOutbound(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.topic, mode, name, ok, tt.wantMode, tt.wantName, tt.wantOK)
			}
		})
	}
}

func TestParseReply(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		topic  string
		want   string
		wantOK bool
	}{
		{"edgelink/reply/abc-123", "abc-123", true},
		{"edgelink/reply/", "", false},
		{"edgelink/reply/a/b", "", false},
		{"edgelink/result/abc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, ok := topics.ParseReply(tt.topic)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseReply(%q) = (%q, %v), want (%q, %v)", tt.topic, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"device.list", true},
		{"a/b", true},
		{"", false},
		{"a+b", false},
		{"#", false},
		{"nul\x00", false},
	}
	for _, tt := range tests {
		if got := ValidLevel(tt.in); got != tt.want {
			t.Errorf("ValidLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
