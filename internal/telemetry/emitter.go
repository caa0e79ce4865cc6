package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Topics holds the emitter's MQTT topic set.
type Topics struct {
	Telemetry string
	Health    string
	Control   string
}

// Emitter publishes telemetry entries and health reports over MQTT and
// listens on the control topic for operator commands. The only command
// understood is "reset", dispatched to the OnReset callback.
type Emitter struct {
	broker   string
	clientID string
	topics   Topics
	qos      byte
	client   mqtt.Client

	// OnReset is invoked when a reset command arrives on the control
	// topic. Set before Connect.
	OnReset func()

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// command is the control-plane payload.
type command struct {
	Command string `json:"command"`
}

// NewEmitter creates a disconnected emitter.
func NewEmitter(broker, clientID string, topics Topics, qos byte) *Emitter {
	return &Emitter{
		broker:   broker,
		clientID: clientID,
		topics:   topics,
		qos:      qos,
	}
}

// Connect establishes the broker connection with auto-reconnect and
// subscribes to the control topic. A missing broker is not fatal to the
// relay; the caller logs and degrades.
func (e *Emitter) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.broker))
	opts.SetClientID(e.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		slog.Info("telemetry: mqtt connection established",
			"broker", e.broker,
			"client_id", e.clientID,
		)
		e.subscribeControl(c)
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		slog.Warn("telemetry: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.broker,
		)
	}

	e.client = mqtt.NewClient(opts)

	slog.Info("telemetry: connecting to mqtt broker", "broker", e.broker)

	token := e.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("telemetry: mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("telemetry: mqtt connection failed: %w", err)
	}
	return nil
}

func (e *Emitter) subscribeControl(c mqtt.Client) {
	if e.topics.Control == "" {
		return
	}

	token := c.Subscribe(e.topics.Control, e.qos, func(_ mqtt.Client, msg mqtt.Message) {
		var cmd command
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			slog.Warn("telemetry: malformed control message", "error", err)
			return
		}
		switch cmd.Command {
		case "reset":
			slog.Info("telemetry: reset command received")
			if e.OnReset != nil {
				e.OnReset()
			}
		default:
			slog.Warn("telemetry: unknown control command", "command", cmd.Command)
		}
	})
	if !token.WaitTimeout(5 * time.Second) {
		slog.Warn("telemetry: control topic subscribe timeout", "topic", e.topics.Control)
	}
}

// Connected reports broker connectivity.
func (e *Emitter) Connected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected && e.client != nil && e.client.IsConnected()
}

// Publish emits one telemetry entry. Returns an error when disconnected
// or the publish times out; the caller treats both as degradation, not
// failure.
func (e *Emitter) Publish(entry Entry) error {
	if !e.Connected() {
		e.countError()
		return fmt.Errorf("telemetry: mqtt not connected")
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		e.countError()
		return fmt.Errorf("telemetry: marshal entry: %w", err)
	}

	token := e.client.Publish(e.topics.Telemetry, e.qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("telemetry: publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("telemetry: publish failed: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()
	return nil
}

// PublishHealth emits a health report on the health topic.
func (e *Emitter) PublishHealth(report any) error {
	if !e.Connected() {
		return fmt.Errorf("telemetry: mqtt not connected")
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("telemetry: marshal health: %w", err)
	}

	token := e.client.Publish(e.topics.Health, 0, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("telemetry: health publish timeout")
	}
	return token.Error()
}

// Close disconnects from the broker.
func (e *Emitter) Close() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
	}
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
}

func (e *Emitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

// Counters returns published/error counts.
func (e *Emitter) Counters() (published, errors uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.published, e.errors
}
