package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/edgelink/internal/infrastructure/config"
)

// testConfig returns a bus configuration pointing at a local broker.
// Only the integration tests actually dial it.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "edgelink-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		TopicPrefix: "edgelink",
	}
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "relay", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "edgelink-test" {
		t.Errorf("ClientID = %q, want edgelink-test", opts.ClientID)
	}
	if opts.Username != "relay" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want relay/secret", opts.Username, opts.Password)
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false, want true")
	}
	if !opts.AutoReconnect || !opts.ConnectRetry {
		t.Error("auto reconnect not enabled")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS configured for a plain tcp broker")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS minimum version not applied")
	}
	if opts.Username != "" {
		t.Errorf("Username = %q, want empty", opts.Username)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, Topics{Prefix: "site7"}, "edgelink-test")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if opts.WillTopic != "site7/status" {
		t.Errorf("WillTopic = %q, want site7/status", opts.WillTopic)
	}
	if !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will retained=%v qos=%d, want true/1", opts.WillRetained, opts.WillQos)
	}

	var p StatusPayload
	if err := json.Unmarshal(opts.WillPayload, &p); err != nil {
		t.Fatalf("will payload: %v", err)
	}
	if p.Status != StatusOffline || p.ClientID != "edgelink-test" || p.Reason != "unexpected_disconnect" {
		t.Errorf("will payload = %+v", p)
	}
	if _, err := time.Parse(time.RFC3339, p.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", p.Timestamp, err)
	}
}

func TestStatusPayload_OmitsEmptyReason(t *testing.T) {
	got := string(statusPayload(StatusOnline, "edge", ""))
	if strings.Contains(got, "reason") {
		t.Errorf("statusPayload() = %s, want no reason field", got)
	}
}

// A client that never connected must reject operations without touching
// the paho client.
func TestClient_Disconnected(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish", c.Publish("edgelink/inbound/x", nil, 1, false), ErrNotConnected},
		{"publish empty topic", c.Publish("", nil, 1, false), ErrInvalidTopic},
		{"publish wildcard", c.Publish("edgelink/inbound/#", nil, 1, false), ErrInvalidTopic},
		{"publish bad qos", c.Publish("edgelink/x", nil, 3, false), ErrInvalidQoS},
		{"publish too large", c.Publish("edgelink/x", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed},
		{"subscribe", c.Subscribe("edgelink/#", 1, noop), ErrNotConnected},
		{"subscribe empty topic", c.Subscribe("", 1, noop), ErrInvalidTopic},
		{"subscribe bad qos", c.Subscribe("edgelink/#", 3, noop), ErrInvalidQoS},
		{"subscribe nil handler", c.Subscribe("edgelink/#", 1, nil), ErrSubscribeFailed},
		{"unsubscribe", c.Unsubscribe("edgelink/#"), ErrNotConnected},
		{"unsubscribe empty", c.Unsubscribe(""), ErrInvalidTopic},
		{"health", c.HealthCheck(context.Background()), ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
	if c.HasSubscription("edgelink/#") {
		t.Error("rejected subscription was tracked")
	}
}

func TestClient_CloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client = %v, want nil", err)
	}
}

func TestClient_HealthCheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := (&Client{}).HealthCheck(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() = %v, want context.Canceled", err)
	}
}

func TestDispatch(t *testing.T) {
	logger := &recordingLogger{}

	var got string
	dispatch(logger, func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	}, "edgelink/outbound/send/a", []byte("1"))
	if got != "edgelink/outbound/send/a=1" {
		t.Errorf("handler saw %q", got)
	}

	dispatch(logger, func(string, []byte) error { return errors.New("bad payload") }, "t", nil)
	dispatch(logger, func(string, []byte) error { panic("boom") }, "t", nil)

	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one", logger.warns)
	}
	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one", logger.errors)
	}

	// A nil logger still recovers.
	dispatch(nil, func(string, []byte) error { panic("boom") }, "t", nil)
}
