package link

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncode_Frames(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		want string
	}{
		{
			name: "notification",
			env:  Envelope{Name: "device.state", Data: json.RawMessage(`{"on":true}`), ID: 4},
			want: `{"m":"device.state","d":{"on":true},"i":4}`,
		},
		{
			name: "request",
			env:  Envelope{Name: "device.list", Data: json.RawMessage(`null`), ID: 9, Request: true},
			want: `{"m":"device.list","d":null,"i":9,"r":true}`,
		},
		{
			name: "response carries id as string",
			env:  Envelope{Data: json.RawMessage(`[1,2]`), ReplyTo: 42},
			want: `{"d":[1,2],"r":"42"}`,
		},
		{
			name: "response ignores own id",
			env:  Envelope{Data: json.RawMessage(`1`), ID: 3, ReplyTo: 7},
			want: `{"d":1,"r":"7"}`,
		},
		{
			name: "heartbeat",
			env:  Envelope{heartbeat: true},
			want: `{"t":"hb"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.env)
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Encode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEncode_RejectsMissingName(t *testing.T) {
	for _, env := range []Envelope{{ID: 1}, {ID: 1, Request: true}} {
		if _, err := Encode(env); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Encode(%+v) error = %v, want ErrInvalidName", env, err)
		}
	}
}

func TestDecode_Frames(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		wantKind Kind
		wantName string
		wantID   uint64
		wantTo   uint64
		wantData string
	}{
		{
			name:     "notification",
			frame:    `{"m":"sensor.reading","d":{"v":21.5},"i":12}`,
			wantKind: KindNotification,
			wantName: "sensor.reading",
			wantID:   12,
			wantData: `{"v":21.5}`,
		},
		{
			name:     "request",
			frame:    `{"m":"device.get","d":"lamp-1","i":3,"r":true}`,
			wantKind: KindRequest,
			wantName: "device.get",
			wantID:   3,
			wantData: `"lamp-1"`,
		},
		{
			name:     "response with string id",
			frame:    `{"d":{"ok":true},"r":"17"}`,
			wantKind: KindResponse,
			wantTo:   17,
			wantData: `{"ok":true}`,
		},
		{
			name:     "response with numeric id",
			frame:    `{"d":1,"r":18}`,
			wantKind: KindResponse,
			wantTo:   18,
			wantData: `1`,
		},
		{
			name:     "r false is a notification",
			frame:    `{"m":"x","i":2,"r":false}`,
			wantKind: KindNotification,
			wantName: "x",
			wantID:   2,
		},
		{
			name:     "heartbeat",
			frame:    `{"t":"hb"}`,
			wantKind: KindHeartbeat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.frame))
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if env.Kind() != tt.wantKind {
				t.Errorf("Kind() = %v, want %v", env.Kind(), tt.wantKind)
			}
			if env.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", env.Name, tt.wantName)
			}
			if env.ID != tt.wantID {
				t.Errorf("ID = %d, want %d", env.ID, tt.wantID)
			}
			if env.ReplyTo != tt.wantTo {
				t.Errorf("ReplyTo = %d, want %d", env.ReplyTo, tt.wantTo)
			}
			if string(env.Data) != tt.wantData {
				t.Errorf("Data = %s, want %s", env.Data, tt.wantData)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	frames := []string{
		`not json`,
		`[1,2,3]`,
		`{}`,
		`{"d":1}`,
		`{"d":1,"r":"abc"}`,
		`{"d":1,"r":"0"}`,
		`{"d":1,"r":-4}`,
		`{"i":5,"r":true}`,
		`{"m":"x","r":true}`,
	}

	for _, frame := range frames {
		t.Run(frame, func(t *testing.T) {
			_, err := Decode([]byte(frame))
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("Decode(%s) error = %v, want ErrMalformedFrame", frame, err)
			}
		})
	}
}

func TestEncodeDecode_ResponsePreservesID(t *testing.T) {
	frame, err := Encode(Envelope{Data: json.RawMessage(`"pong"`), ReplyTo: MaxSafeInteger})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	env, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if env.ReplyTo != MaxSafeInteger {
		t.Errorf("ReplyTo = %d, want %d", env.ReplyTo, MaxSafeInteger)
	}
}
