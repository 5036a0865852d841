package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

func TestLinkSamplePoint(t *testing.T) {
	at := time.Unix(1700000000, 0)
	fields := map[string]any{"frames_sent": uint64(4)}

	line := write.PointToLineProtocol(linkSamplePoint(LinkSample{
		Site:        "s",
		TransportID: "t",
		State:       "connecting",
		Fields:      fields,
		Time:        at,
	}), time.Second)

	want := `edgelink_link,site=s,transport_id=t frames_sent=4u,state="connecting" 1700000000`
	if strings.TrimSpace(line) != want {
		t.Errorf("line = %q, want %q", line, want)
	}
	if _, ok := fields["state"]; ok {
		t.Error("linkSamplePoint mutated the caller's field map")
	}
}

func TestLinkEventPoint(t *testing.T) {
	tests := []struct {
		name string
		ev   LinkEvent
		want string
	}{
		{
			name: "connected",
			ev:   LinkEvent{Site: "s", TransportID: "t", Event: "connected", Attempt: 1, Time: time.Unix(10, 0)},
			want: `edgelink_link_event,event=connected,site=s,transport_id=t attempt=1i 10`,
		},
		{
			name: "with error",
			ev:   LinkEvent{Site: "s", TransportID: "t", Event: "disconnected", Err: "eof", Time: time.Unix(10, 0)},
			want: `edgelink_link_event,event=disconnected,site=s,transport_id=t attempt=0i,error="eof" 10`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.TrimSpace(write.PointToLineProtocol(linkEventPoint(tt.ev), time.Second))
			if got != tt.want {
				t.Errorf("line = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStamp(t *testing.T) {
	if stamp(time.Time{}).IsZero() {
		t.Error("stamp(zero) returned zero time")
	}
	at := time.Unix(5, 0)
	if !stamp(at).Equal(at) {
		t.Errorf("stamp(%v) changed the time", at)
	}
}
