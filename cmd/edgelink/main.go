// Edgelink keeps an edge device connected to its cloud coordinator.
//
// It maintains the persistent coordinator link, bridges coordinator messages
// onto the local MQTT bus, records link telemetry and serves a small admin
// API for health checks and Prometheus scrapes.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/edgelink/internal/api"
	"github.com/nerrad567/edgelink/internal/auth"
	"github.com/nerrad567/edgelink/internal/infrastructure/config"
	"github.com/nerrad567/edgelink/internal/infrastructure/influxdb"
	"github.com/nerrad567/edgelink/internal/infrastructure/logging"
	"github.com/nerrad567/edgelink/internal/infrastructure/mqtt"
	"github.com/nerrad567/edgelink/internal/link"
	"github.com/nerrad567/edgelink/internal/relay"
	"github.com/nerrad567/edgelink/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, blocks until ctx is cancelled and tears down
// in reverse order through the defer chain.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting edgelink",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version).With("site", cfg.Site.ID)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Coordinator link. Started last so every subscriber sees the first
	// connection.
	coordinator, err := link.New(buildLinkConfig(cfg, log.Component("link")))
	if err != nil {
		return fmt.Errorf("creating link: %w", err)
	}
	defer func() {
		log.Info("stopping coordinator link")
		if stopErr := coordinator.Stop(); stopErr != nil {
			log.Error("error stopping link", "error", stopErr)
		}
	}()

	if cfg.Link.Auth.Enabled {
		tokens, tokenErr := auth.NewTokenSource(cfg.Site.ID, coordinator.TransportID(), cfg.Link.Auth.TokenSecret, cfg.Link.Auth.TokenTTL)
		if tokenErr != nil {
			return fmt.Errorf("creating device token source: %w", tokenErr)
		}
		coordinator.SetHeaderProvider(tokens.Header)
		log.Info("device token auth enabled", "ttl", cfg.Link.Auth.TokenTTL)
	}

	// Local bus and relay
	var (
		bus    *mqtt.Client
		bridge *relay.Relay
	)
	if cfg.MQTT.Enabled {
		bus, bridge, err = startRelay(ctx, cfg, coordinator, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("stopping relay")
			bridge.Stop()
			log.Info("disconnecting from MQTT")
			if closeErr := bus.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT relay disabled")
	}

	// Telemetry
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	var relayStats telemetry.RelayStatsSource
	if bridge != nil {
		relayStats = bridge
	}
	if err := telemetry.RegisterMetrics(registry, coordinator, relayStats); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		reporter := telemetry.NewReporter(telemetry.ReporterConfig{
			Site:     cfg.Site.ID,
			Interval: cfg.Telemetry.Interval,
			Source:   coordinator,
			Sink:     influxClient,
			Logger:   log.Component("telemetry"),
		})
		reporter.Start(ctx)
		defer func() {
			log.Info("stopping telemetry reporter")
			reporter.Stop()
		}()
	} else {
		log.Info("InfluxDB disabled")
	}

	// Admin API
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			Logger:   log.Component("api"),
			Link:     coordinator,
			Gatherer: registry,
			SiteID:   cfg.Site.ID,
			Version:  version,
		}
		if bridge != nil {
			deps.Relay = bridge
			deps.Bus = bus
		}
		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("admin API disabled")
	}

	if err := coordinator.Start(ctx, linkHeaders(cfg.Link.Headers), func(ok bool) {
		if ok {
			log.Info("coordinator link established", "host", coordinator.Host())
		} else {
			log.Warn("first coordinator connection failed, retrying in background", "host", coordinator.Host())
		}
	}); err != nil {
		return fmt.Errorf("starting link: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"host", coordinator.Host(),
		"transport_id", coordinator.TransportID(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. Telemetry reporter (final snapshot), then InfluxDB
	// 3. Relay, then MQTT
	// 4. Coordinator link

	log.Info("edgelink stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses EDGELINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("EDGELINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildLinkConfig maps the link config section onto link.Config.
func buildLinkConfig(cfg *config.Config, log link.Logger) link.Config {
	lc := link.DefaultConfig(cfg.Link.Host)
	lc.TransportID = cfg.Link.TransportID
	lc.EnableHeartbeat = cfg.Link.EnableHeartbeat
	lc.HeartbeatInterval = cfg.Link.HeartbeatInterval
	lc.MessageTimeout = cfg.Link.MessageTimeout
	lc.WriteTimeout = cfg.Link.WriteTimeout
	lc.HandshakeTimeout = cfg.Link.HandshakeTimeout
	lc.EventQueueSize = cfg.Link.EventQueueSize
	lc.ReadLimit = cfg.Link.ReadLimit
	lc.Backoff = link.Backoff{
		Factor:   cfg.Link.Backoff.Factor,
		MinDelay: cfg.Link.Backoff.MinDelay,
		MaxDelay: cfg.Link.Backoff.MaxDelay,
		Jitter:   cfg.Link.Backoff.Jitter,
	}
	lc.Logger = log
	return lc
}

// linkHeaders converts configured static headers.
func linkHeaders(values map[string]string) http.Header {
	h := make(http.Header, len(values))
	for k, v := range values {
		h.Set(k, v)
	}
	return h
}

// startRelay connects to the MQTT broker and starts bridging it to the link.
func startRelay(ctx context.Context, cfg *config.Config, coordinator *link.Link, log *logging.Logger) (*mqtt.Client, *relay.Relay, error) {
	bus, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	bus.SetLogger(log.Component("mqtt"))
	bus.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	bus.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"topic_prefix", bus.Topics().Prefix,
	)

	bridge, err := relay.New(relay.Options{
		Bus:      bus,
		Link:     coordinator,
		Topics:   bus.Topics(),
		QoS:      bus.QoS(),
		ReplyTTL: 2 * cfg.Link.MessageTimeout,
		Logger:   log.Component("relay"),
	})
	if err != nil {
		bus.Close() //nolint:errcheck // Already failing
		return nil, nil, fmt.Errorf("creating relay: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		bus.Close() //nolint:errcheck // Already failing
		return nil, nil, fmt.Errorf("starting relay: %w", err)
	}
	log.Info("relay started")

	return bus, bridge, nil
}
