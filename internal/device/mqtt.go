// Package device talks to the garden controller over MQTT: it receives
// sensor readings pushed by the device and publishes actuator commands.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/sproutwatch/sproutwatch/internal/config"
	"github.com/sproutwatch/sproutwatch/pkg/models"
)

var (
	ErrNoReading    = errors.New("no reading received from device yet")
	ErrNotConnected = errors.New("not connected to broker")
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second

	// DefaultStaleAfter is five samples at the default two second interval.
	DefaultStaleAfter = 10 * time.Second
)

// Command is an actuator instruction sent to the device.
type Command struct {
	Action      string `json:"action"`
	TargetLevel *int   `json:"target_level,omitempty"`
	Plant       string `json:"plant,omitempty"`
	On          *bool  `json:"on,omitempty"`
}

// ReadingsTopic is where the device pushes latest.json payloads.
func ReadingsTopic(prefix string) string { return prefix + "/readings" }

// CommandsTopic is where actuator commands are published.
func CommandsTopic(prefix string) string { return prefix + "/commands" }

// Client is a broker connection serving both directions.
type Client struct {
	client     mqtt.Client
	prefix     string
	staleAfter time.Duration
	connected  atomic.Bool
	now        func() time.Time

	mu       sync.RWMutex
	last     *models.SensorReading
	received time.Time
}

// Connect dials the broker. Connection failures are retried in the
// background, so a nil error does not mean the broker is reachable yet.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker not configured")
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("sproutwatch-%d", time.Now().UnixNano())
	}

	c := &Client{prefix: cfg.TopicPrefix, staleAfter: cfg.StaleAfter}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
			log.Debug().Str("broker", cfg.Broker).Msg("Reconnecting to MQTT broker")
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	c.client = mqtt.NewClient(opts)

	log.Info().Str("broker", cfg.Broker).Str("client_id", clientID).Msg("Connecting to MQTT broker")
	token := c.client.Connect()
	if token.WaitTimeout(connectTimeout) {
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("mqtt connect: %w", err)
		}
	} else {
		log.Warn().Msg("MQTT connection timeout, will retry in background")
	}
	return c, nil
}

func (c *Client) onConnect(client mqtt.Client) {
	c.connected.Store(true)
	topic := ReadingsTopic(c.prefix)
	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		c.handleReading(msg.Payload())
	})
	if !token.WaitTimeout(connectTimeout) {
		log.Warn().Str("topic", topic).Msg("MQTT subscribe not confirmed before timeout")
		return
	}
	if err := token.Error(); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("MQTT subscribe failed")
		return
	}
	log.Info().Str("topic", topic).Msg("📡 Subscribed to device readings")
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	log.Warn().Err(err).Msg("MQTT connection lost")
}

func (c *Client) handleReading(payload []byte) {
	r, err := DecodeReading(payload)
	if err != nil {
		log.Warn().Err(err).Msg("Discarding malformed device reading")
		return
	}
	c.mu.Lock()
	c.last = &r
	c.received = c.clock()
	c.mu.Unlock()
}

func (c *Client) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// DecodeReading parses a device payload. A missing timestamp is filled
// with the receive time.
func DecodeReading(payload []byte) (models.SensorReading, error) {
	var r models.SensorReading
	if err := json.Unmarshal(payload, &r); err != nil {
		return models.SensorReading{}, fmt.Errorf("decode reading: %w", err)
	}
	if r.Timestamp == "" {
		r.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return r, nil
}

// Connected reports the broker connection state.
func (c *Client) Connected() bool { return c.connected.Load() }

// Latest returns the last pushed reading. It satisfies sampler.Source.
// A reading older than the stale window is reported as ErrNoReading so a
// silent device shows up offline.
func (c *Client) Latest(ctx context.Context) (models.SensorReading, error) {
	if !c.Connected() {
		return models.SensorReading{}, ErrNotConnected
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return models.SensorReading{}, ErrNoReading
	}
	window := c.staleAfter
	if window <= 0 {
		window = DefaultStaleAfter
	}
	if age := c.clock().Sub(c.received); age > window {
		return models.SensorReading{}, fmt.Errorf("%w: last one is %s old", ErrNoReading, age.Round(time.Second))
	}
	return *c.last, nil
}

// Publish sends cmd to the commands topic and waits for the broker to
// accept it.
func (c *Client) Publish(ctx context.Context, cmd Command) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	token := c.client.Publish(CommandsTopic(c.prefix), 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish %s: timeout", cmd.Action)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", cmd.Action, err)
	}
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(500)
	}
	c.connected.Store(false)
}
