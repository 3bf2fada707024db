// Package worker implements the Worker Descriptor and spawn/lifecycle
// sequence of spec §4.E, and the Runtime facade of design note 9: a
// single explicitly constructed value bundling the shutdown coordinator,
// thread registry, and log queue that every worker is handed, replacing
// invisible global state with one shared handle.
//
// The hook capability set follows design note 9's "no hook" rule:
// unset lifecycle hooks (PreCreate, PostCreate, Init, Exit) are
// normalized to explicit no-op funcs once, at Spawn time, so their call
// sites never branch on nil. An unset MsgProcessor stays nil and selects
// MainFn.
//
// Follows cmd/consumer's Application.Start/Shutdown hook sequencing
// (config → clients → processor → health server, each step logged and
// error-wrapped) and its ctx.Done()-based goroutine bodies.
package worker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ibs-source/recorder/internal/logqueue"
	"github.com/ibs-source/recorder/internal/message"
	"github.com/ibs-source/recorder/internal/queue"
	"github.com/ibs-source/recorder/internal/registry"
	"github.com/ibs-source/recorder/internal/shutdown"
)

// LoggerReadyTimeout bounds how long a non-logger worker's init hook
// waits for the logger to start draining the log queue (spec §4.E).
const LoggerReadyTimeout = 5 * time.Second

// ErrInitFailed is returned when a worker's Init hook fails or times out
// waiting for the logger-ready barrier.
var ErrInitFailed = errors.New("worker: init failed")

// Hooks is the capability set a Worker Descriptor may supply. Any unset
// lifecycle hook is normalized to a no-op before Spawn calls it; an
// unset MsgProcessor stays nil.
type Hooks struct {
	// PreCreate runs in the caller's goroutine before the worker's
	// goroutine is spawned.
	PreCreate func(label string)
	// PostCreate runs in the caller's goroutine immediately after spawn.
	PostCreate func(label string)
	// Init runs first inside the worker's own goroutine. Non-logger
	// workers should not assume the logger is draining until this
	// returns; the runtime enforces the wait before calling Init.
	Init func(wc *Context) error
	// Exit runs after MainFn/MsgProcessor loop returns, before the
	// registry is transitioned to its terminal state.
	Exit func(wc *Context)
	// MsgProcessor, if set, is invoked once per popped message by the
	// generated poll loop instead of running MainFn directly.
	MsgProcessor func(wc *Context, msg message.Message)
}

func noopPreCreate(string)  {}
func noopPostCreate(string) {}
func noopInit(*Context) error { return nil }
func noopExit(*Context)       {}

func normalizeHooks(h Hooks) Hooks {
	if h.PreCreate == nil {
		h.PreCreate = noopPreCreate
	}
	if h.PostCreate == nil {
		h.PostCreate = noopPostCreate
	}
	if h.Init == nil {
		h.Init = noopInit
	}
	if h.Exit == nil {
		h.Exit = noopExit
	}
	return h
}

// Descriptor describes one worker to Spawn.
type Descriptor struct {
	Label string
	// IsLogger marks the one worker exempt from the logger-ready
	// barrier (it IS the logger).
	IsLogger bool
	// AutoCleanup is forwarded to registry.Register.
	AutoCleanup bool
	// Suppressed skips creation entirely: the entry never exists.
	Suppressed bool

	Hooks Hooks

	// MainFn, if MsgProcessor is unset, is the worker's entire body; it
	// must poll wc.ShuttingDown() itself and return when told to stop.
	MainFn func(wc *Context) error

	// BatchSize/PollInterval configure the generated poll loop used
	// when Hooks.MsgProcessor is set.
	BatchSize    int
	PollInterval time.Duration

	// InboxSize overrides the inbox capacity passed to init_queue
	// (spec §4.D's max_queue_size); zero uses defaultInboxSize.
	InboxSize int

	UserData any
}

// HexDumper renders a Trace-level hex+ASCII dump of raw bytes, tagged
// with a label. The logger Sink implements this; satisfied structurally
// so this package never imports internal/logger.
type HexDumper interface {
	HexDump(label string, data []byte)
}

// Runtime bundles the process-wide shutdown coordinator, thread
// registry, and log queue, per design note 9. Construct one with New
// and pass the shared handle to every worker.
type Runtime struct {
	Shutdown *shutdown.Coordinator
	Registry *registry.Registry
	LogQueue *logqueue.Queue

	loggerReadyOnce sync.Once
	loggerReadyCh   chan struct{}
	loggerReady     atomic.Bool

	suppressedMu sync.Mutex
	suppressed   map[string]bool

	hexDumper HexDumper
}

// New constructs a Runtime. Call Shutdown.Install and Registry.Init
// before spawning any workers.
func New(sd *shutdown.Coordinator, reg *registry.Registry, lq *logqueue.Queue) *Runtime {
	return &Runtime{
		Shutdown:      sd,
		Registry:      reg,
		LogQueue:      lq,
		loggerReadyCh: make(chan struct{}),
		suppressed:    make(map[string]bool),
	}
}

// SetSuppressed installs the startup suppression list (spec §4.E): a
// suppressed label's worker is never created.
func (rt *Runtime) SetSuppressed(labels []string) {
	rt.suppressedMu.Lock()
	defer rt.suppressedMu.Unlock()
	for _, l := range labels {
		rt.suppressed[l] = true
	}
}

// SetHexDumper installs the runtime-wide hex dump sink (§4.J), used by
// Context.HexDump to render command frame and relay payload bodies at
// Trace level. A nil dumper makes Context.HexDump a no-op.
func (rt *Runtime) SetHexDumper(h HexDumper) {
	rt.hexDumper = h
}

func (rt *Runtime) isSuppressed(label string) bool {
	rt.suppressedMu.Lock()
	defer rt.suppressedMu.Unlock()
	return rt.suppressed[label]
}

// MarkLoggerReady signals every waiting init hook that the logger is
// now draining the log queue. Idempotent.
func (rt *Runtime) MarkLoggerReady() {
	rt.loggerReadyOnce.Do(func() {
		rt.loggerReady.Store(true)
		close(rt.loggerReadyCh)
	})
}

// waitLoggerReady blocks up to timeout for MarkLoggerReady.
func (rt *Runtime) waitLoggerReady(timeout time.Duration) bool {
	if rt.loggerReady.Load() {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-rt.loggerReadyCh:
		return true
	case <-timer.C:
		return rt.loggerReady.Load()
	}
}

// Context is the per-worker handle passed to hooks, MainFn, and
// MsgProcessor: it addresses the worker by label (design note 9's
// "avoid any true cycle" — the worker never holds a registry entry
// pointer, only its own label and token).
type Context struct {
	Label   string
	Runtime *Runtime
	token   registry.Token

	UserData any
}

// ShuttingDown reports whether the process-wide shutdown flag is set.
func (c *Context) ShuttingDown() bool {
	return c.Runtime.Shutdown.IsSignalled()
}

// Push enqueues msg into this worker's own inbox (rarely used; workers
// usually push into a peer's inbox via PushTo). Any worker may push.
func (c *Context) Push(msg message.Message, timeout time.Duration) error {
	return c.Runtime.Registry.PushMessage(c.Label, msg, timeout)
}

// PushTo enqueues msg into a peer worker's inbox, addressed by label.
func (c *Context) PushTo(peerLabel string, msg message.Message, timeout time.Duration) error {
	return c.Runtime.Registry.PushMessage(peerLabel, msg, timeout)
}

// Pop dequeues from this worker's own inbox. Only the worker holding
// this Context's token may succeed; a foreign caller fails Unauthorized.
func (c *Context) Pop(timeout time.Duration) (message.Message, error) {
	return c.Runtime.Registry.PopMessage(c.Label, c.token, timeout)
}

// Logf pushes a log entry for this worker's label into the runtime's
// log queue.
func (c *Context) Logf(level message.Level, text string) {
	idx := c.Runtime.LogQueue.NextIndex()
	c.Runtime.LogQueue.Push(message.NewLogEntry(idx, level, time.Now(), c.Label, text))
}

// HexDump renders data through the runtime's HexDumper, if one is
// installed, bypassing the log queue like the other direct-emit paths
// (§4.J: command frame bodies and relay payloads at Trace level).
func (c *Context) HexDump(label string, data []byte) {
	if c.Runtime.hexDumper != nil {
		c.Runtime.hexDumper.HexDump(label, data)
	}
}

const defaultInboxSize = queue.DefaultMaxSize

// Spawn runs the sequence of spec §4.E: pre_create hook, suppression
// check, registration, goroutine launch (init-hook barrier, then
// MainFn or the generated poll loop, then exit hook, then terminal
// state transition), post_create hook. Returns immediately after the
// goroutine is launched; it does not wait for the worker to finish.
func Spawn(rt *Runtime, desc Descriptor) error {
	hooks := normalizeHooks(desc.Hooks)
	hooks.PreCreate(desc.Label)

	if desc.Suppressed || rt.isSuppressed(desc.Label) {
		return nil
	}

	tok, err := rt.Registry.Register(&descriptorRef{label: desc.Label}, desc.AutoCleanup)
	if err != nil {
		return err
	}
	inboxSize := desc.InboxSize
	if inboxSize <= 0 {
		inboxSize = defaultInboxSize
	}
	if err := rt.Registry.InitQueue(desc.Label, inboxSize); err != nil {
		return err
	}

	wc := &Context{Label: desc.Label, Runtime: rt, token: tok, UserData: desc.UserData}

	go runWorker(rt, desc, hooks, wc)

	hooks.PostCreate(desc.Label)
	return nil
}

// descriptorRef satisfies registry.WorkerRef using only the label; this
// package's Context, not the registry entry, is a worker's identity, so
// no back-pointer or liveness capability is attached here. Per-worker
// health is instead observed via the registry state machine the worker
// itself drives with UpdateState.
type descriptorRef struct {
	label string
}

func (d *descriptorRef) Label() string { return d.label }

func runWorker(rt *Runtime, desc Descriptor, hooks Hooks, wc *Context) {
	if !desc.IsLogger {
		if !rt.waitLoggerReady(LoggerReadyTimeout) {
			_ = rt.Registry.UpdateState(desc.Label, registry.Failed)
			return
		}
	}

	if err := hooks.Init(wc); err != nil {
		_ = rt.Registry.UpdateState(desc.Label, registry.Failed)
		return
	}

	if err := rt.Registry.UpdateState(desc.Label, registry.Running); err != nil {
		_ = rt.Registry.UpdateState(desc.Label, registry.Failed)
		return
	}

	runErr := runBody(rt, desc, wc)

	hooks.Exit(wc)

	if runErr != nil {
		_ = rt.Registry.UpdateState(desc.Label, registry.Failed)
		return
	}
	_ = rt.Registry.UpdateState(desc.Label, registry.Stopping)
	_ = rt.Registry.UpdateState(desc.Label, registry.Terminated)
}

func runBody(rt *Runtime, desc Descriptor, wc *Context) error {
	if desc.Hooks.MsgProcessor != nil {
		runPollLoop(rt, desc, wc)
		return nil
	}
	if desc.MainFn != nil {
		return desc.MainFn(wc)
	}
	return nil
}

// runPollLoop is the generated main body used when a Descriptor
// supplies MsgProcessor instead of MainFn: it pops up to BatchSize
// messages every PollInterval, dispatching each, until shutdown fires.
func runPollLoop(rt *Runtime, desc Descriptor, wc *Context) {
	batch := desc.BatchSize
	if batch <= 0 {
		batch = 1
	}
	interval := desc.PollInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	for !wc.ShuttingDown() {
		drained := 0
		for drained < batch {
			msg, err := wc.Pop(0)
			if err != nil {
				break
			}
			desc.Hooks.MsgProcessor(wc, msg)
			drained++
		}
		if drained == 0 {
			rt.Shutdown.Wait(interval)
		}
	}
}
