package clients

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"airdrop-backend/internal/config"
	"airdrop-backend/internal/metrics"

	"github.com/nats-io/nats.go"
)

const (
	airdropStreamName = "GRLKRASH_AIRDROPS"

	// Lifecycle events are published under grlkrash.airdrop.<event>.
	airdropSubjectPrefix = "grlkrash.airdrop."
)

// NATSClient publishes airdrop lifecycle events to JetStream so downstream
// consumers (notification bots, analytics) can react to distributions.
type NATSClient struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewNATSClient connects to the NATS server and ensures the airdrop stream.
func NewNATSClient(cfg *config.NATSConfig) (*NATSClient, error) {
	connectTimeout := 10 * time.Second
	if cfg.Timeout > 0 {
		connectTimeout = time.Duration(cfg.Timeout) * time.Second
	}
	reconnectWait := 5 * time.Second
	if cfg.ReconnectWait > 0 {
		reconnectWait = time.Duration(cfg.ReconnectWait) * time.Second
	}
	maxReconnects := -1
	if cfg.MaxReconnects > 0 {
		maxReconnects = cfg.MaxReconnects
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("⚠️ [NATS] Disconnected: %v", err)
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("✅ [NATS] Reconnected to %s", nc.ConnectedUrl())
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &NATSClient{conn: conn, js: js}

	if cfg.EnableJetStream {
		if err := client.ensureStream(); err != nil {
			log.Printf("⚠️ [NATS] Failed to ensure stream, falling back to core publish: %v", err)
		}
	}

	return client, nil
}

// ensureStream creates the airdrop stream when it does not exist yet.
func (c *NATSClient) ensureStream() error {
	_, err := c.js.StreamInfo(airdropStreamName)
	if err == nil {
		log.Printf("📦 [NATS] Stream %s already exists", airdropStreamName)
		return nil
	}

	streamConfig := &nats.StreamConfig{
		Name:      airdropStreamName,
		Subjects:  []string{airdropSubjectPrefix + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}

	if _, err := c.js.AddStream(streamConfig); err != nil {
		return fmt.Errorf("failed to create stream %s: %w", airdropStreamName, err)
	}

	log.Printf("✅ [NATS] Stream %s created", airdropStreamName)
	return nil
}

// PublishEvent publishes one lifecycle event. Publish failures are logged,
// not propagated: event delivery never blocks a distribution.
func (c *NATSClient) PublishEvent(eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("⚠️ [NATS] Failed to marshal %s event: %v", eventType, err)
		return
	}

	subject := airdropSubjectPrefix + eventType
	if _, err := c.js.Publish(subject, data); err != nil {
		// JetStream may be unavailable; try core NATS so live subscribers
		// still see the event.
		if pubErr := c.conn.Publish(subject, data); pubErr != nil {
			log.Printf("⚠️ [NATS] Failed to publish %s event: %v", eventType, pubErr)
			return
		}
	}
	log.Printf("📤 [NATS] Published %s event (%d bytes)", eventType, len(data))
}

// IsConnected reports the connection status for health checks.
func (c *NATSClient) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Close drains and closes the connection.
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
