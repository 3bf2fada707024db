// Package mqttrelay implements the mqtt_relay satellite: a worker that
// subscribes to one MQTT topic and forwards every received message as a
// message.Relay into a target worker's inbox. Connect attempts are
// guarded by a circuit breaker, matching redisrelay's reconnect shape.
// Paho client option wiring (connect timeout, auto-reconnect, clean
// session) follows this codebase's internal/mqtt/client.go conventions.
package mqttrelay

import (
	"fmt"
	"time"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/ibs-source/recorder/internal/config"
	"github.com/ibs-source/recorder/internal/message"
	"github.com/ibs-source/recorder/internal/worker"
	"github.com/ibs-source/recorder/pkg/circuitbreaker"
	"github.com/ibs-source/recorder/pkg/jsonfast"
)

const (
	connectTimeout = 5 * time.Second
	reconnectWait  = 2 * time.Second
)

// Relay drives one mqtt_relay worker instance.
type Relay struct {
	cfg config.MQTTRelayConfig
	cb  *circuitbreaker.CircuitBreaker
}

// New builds a Relay from its configuration section.
func New(cfg config.MQTTRelayConfig) *Relay {
	return &Relay{
		cfg: cfg,
		cb:  circuitbreaker.New("mqtt_relay", 50, 1, 10*time.Second, 1, 5),
	}
}

// Run implements worker.Descriptor.MainFn: while enabled, it connects to
// Broker, subscribes to Topic, and forwards every message into
// TargetWorker's inbox until shutdown fires. Paho's own auto-reconnect
// handles transient drops; a full client rebuild happens when the
// connect or subscribe fails, or when the client stops reporting itself
// connected.
func (r *Relay) Run(wc *worker.Context) error {
	if !r.cfg.Enabled {
		return nil
	}

	for !wc.ShuttingDown() {
		if err := r.runOnce(wc); err != nil {
			wc.Logf(message.LevelWarn, fmt.Sprintf("mqtt relay disconnected: %v", err))
		}
		if wc.ShuttingDown() {
			return nil
		}
		if !sleepOrShutdown(wc, reconnectWait) {
			return nil
		}
	}
	return nil
}

func (r *Relay) runOnce(wc *worker.Context) error {
	opts := mqttlib.NewClientOptions()
	opts.AddBroker(r.cfg.Broker)
	opts.SetClientID(fmt.Sprintf("recorder-mqtt-relay-%d", time.Now().UnixNano()))
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	cli := mqttlib.NewClient(opts)

	connectErr := r.cb.Execute(func() error {
		token := cli.Connect()
		if !token.WaitTimeout(connectTimeout) {
			return fmt.Errorf("connect to %s timed out", r.cfg.Broker)
		}
		return token.Error()
	})
	if connectErr != nil {
		return connectErr
	}
	defer cli.Disconnect(250)

	wc.Logf(message.LevelInfo, fmt.Sprintf("mqtt relay connected to %s", r.cfg.Broker))

	subToken := cli.Subscribe(r.cfg.Topic, r.cfg.QoS, func(_ mqttlib.Client, msg mqttlib.Message) {
		r.forward(wc, msg)
	})
	if !subToken.WaitTimeout(connectTimeout) {
		return fmt.Errorf("subscribe to %s timed out", r.cfg.Topic)
	}
	if err := subToken.Error(); err != nil {
		return err
	}
	wc.Logf(message.LevelInfo, fmt.Sprintf("mqtt relay subscribed to %s", r.cfg.Topic))

	for !wc.ShuttingDown() {
		if !cli.IsConnected() {
			return fmt.Errorf("lost connection to %s", r.cfg.Broker)
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

func (r *Relay) forward(wc *worker.Context, msg mqttlib.Message) {
	payload := msg.Payload()
	wc.HexDump("mqtt_relay", payload)

	b := jsonfast.New(len(payload) + 32)
	b.AddStringField("topic", msg.Topic())
	b.AddIntField("payload_bytes", len(payload))
	b.EndObject()

	out, err := message.NewMessage(message.Relay, payload)
	if err != nil {
		wc.Logf(message.LevelWarn, fmt.Sprintf("mqtt relay: dropped oversized message on %s: %v", msg.Topic(), err))
		return
	}
	wc.Logf(message.LevelTrace, string(b.Bytes()))
	if err := wc.PushTo(r.cfg.TargetWorker, out, 0); err != nil {
		wc.Logf(message.LevelWarn, fmt.Sprintf("mqtt relay: dropped message, target inbox full: %v", err))
	}
}

// sleepOrShutdown waits for d, returning false early if shutdown fires
// first so the caller can unwind without waiting out the full delay.
func sleepOrShutdown(wc *worker.Context, d time.Duration) bool {
	if d <= 0 {
		return !wc.ShuttingDown()
	}
	deadline := time.Now().Add(d)
	const pollInterval = 20 * time.Millisecond
	for time.Now().Before(deadline) {
		if wc.ShuttingDown() {
			return false
		}
		remaining := time.Until(deadline)
		if remaining > pollInterval {
			remaining = pollInterval
		}
		time.Sleep(remaining)
	}
	return !wc.ShuttingDown()
}
