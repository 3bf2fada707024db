// Package redisrelay implements the redis_relay satellite: a worker that
// subscribes to a Redis Pub/Sub channel and forwards each published
// message as a message.Relay into a target worker's inbox. Connect attempts
// (the initial Ping) are guarded by a circuit breaker so a down broker
// degrades to a backoff loop instead of a busy reconnect storm. The
// reconnect-loop shape follows the context-timeout dial/ping/close
// conventions used by this codebase's Redis Streams client.
package redisrelay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ibs-source/recorder/internal/config"
	"github.com/ibs-source/recorder/internal/message"
	"github.com/ibs-source/recorder/internal/worker"
	"github.com/ibs-source/recorder/pkg/circuitbreaker"
	"github.com/ibs-source/recorder/pkg/jsonx"
	goredis "github.com/redis/go-redis/v9"
)

const (
	dialTimeout   = 5 * time.Second
	reconnectWait = 2 * time.Second
)

// ErrNotConnected is returned by Publish when no subscription connection
// is currently live to publish through.
var ErrNotConnected = errors.New("redis relay: not connected")

// Relay drives one redis_relay worker instance.
type Relay struct {
	cfg config.RedisRelayConfig
	cb  *circuitbreaker.CircuitBreaker

	clientMu sync.Mutex
	client   *goredis.Client
}

// New builds a Relay from its configuration section.
func New(cfg config.RedisRelayConfig) *Relay {
	return &Relay{
		cfg: cfg,
		cb:  circuitbreaker.New("redis_relay", 50, 1, 10*time.Second, 1, 5),
	}
}

// Run implements worker.Descriptor.MainFn: while enabled, it connects to
// Address, subscribes to Channel, and forwards every published message
// into TargetWorker's inbox, reconnecting with a fixed backoff on error
// until shutdown fires.
func (r *Relay) Run(wc *worker.Context) error {
	if !r.cfg.Enabled {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		wc.Runtime.Shutdown.Wait(-1)
		cancel()
	}()

	for !wc.ShuttingDown() {
		if err := r.runOnce(ctx, wc); err != nil {
			wc.Logf(message.LevelWarn, fmt.Sprintf("redis relay disconnected: %v", err))
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

// runOnce owns one connection's lifetime: connect, subscribe, drain the
// subscription channel until it closes or ctx is cancelled.
func (r *Relay) runOnce(ctx context.Context, wc *worker.Context) error {
	client := goredis.NewClient(&goredis.Options{
		Addr:        r.cfg.Address,
		DialTimeout: dialTimeout,
	})
	defer func() { _ = client.Close() }()

	if err := r.cb.Execute(func() error {
		cctx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		return client.Ping(cctx).Err()
	}); err != nil {
		return err
	}

	r.setClient(client)
	defer r.setClient(nil)

	sub := client.Subscribe(ctx, r.cfg.Channel)
	defer func() { _ = sub.Close() }()

	wc.Logf(message.LevelInfo, fmt.Sprintf("redis relay subscribed to %s on %s", r.cfg.Channel, r.cfg.Address))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription channel closed")
			}
			r.forward(wc, msg)
		}
	}
}

func (r *Relay) forward(wc *worker.Context, msg *goredis.Message) {
	payload := []byte(msg.Payload)
	if !jsonx.IsLikelyJSONBytes(payload) {
		wc.Logf(message.LevelTrace, fmt.Sprintf("redis relay: non-JSON payload on %s (%d bytes)", msg.Channel, len(payload)))
	}
	wc.HexDump("redis_relay", payload)

	out, err := message.NewMessage(message.Relay, payload)
	if err != nil {
		wc.Logf(message.LevelWarn, fmt.Sprintf("redis relay: dropped oversized message: %v", err))
		return
	}
	if err := wc.PushTo(r.cfg.TargetWorker, out, 0); err != nil {
		wc.Logf(message.LevelWarn, fmt.Sprintf("redis relay: dropped message, target inbox full: %v", err))
	}
}

func (r *Relay) setClient(c *goredis.Client) {
	r.clientMu.Lock()
	defer r.clientMu.Unlock()
	r.client = c
}

// Publish relays peer's outbound bytes back onto the subscribed
// channel, the symmetric counterpart to the subscribe-side forward:
// any worker holding a reference to this Relay may call it to publish
// outbound bytes, provided a subscription connection is currently live.
func (r *Relay) Publish(ctx context.Context, peer string, payload []byte) error {
	r.clientMu.Lock()
	client := r.client
	r.clientMu.Unlock()
	if client == nil {
		return ErrNotConnected
	}

	pctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Publish(pctx, r.cfg.Channel, payload).Err(); err != nil {
		return fmt.Errorf("redis relay: publish from %s: %w", peer, err)
	}
	return nil
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
