package worker

import (
	"sync"
	"testing"
	"time"

	"github.com/ibs-source/recorder/internal/logqueue"
	"github.com/ibs-source/recorder/internal/message"
	"github.com/ibs-source/recorder/internal/registry"
	"github.com/ibs-source/recorder/internal/shutdown"
)

type nullSink struct{}

func (nullSink) Direct(message.Level, string, string) {}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	reg := registry.New()
	if err := reg.Init(); err != nil {
		t.Fatalf("registry init failed: %v", err)
	}
	sd := shutdown.New()
	lq := logqueue.New(64, nullSink{})
	return New(sd, reg, lq)
}

func waitForState(t *testing.T, rt *Runtime, label string, want registry.State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if rt.Registry.GetState(label) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("label %q never reached state %v, currently %v", label, want, rt.Registry.GetState(label))
}

func TestSpawnLoggerThenWorkerHonorsReadyBarrier(t *testing.T) {
	rt := newTestRuntime(t)

	loggerStarted := make(chan struct{})
	err := Spawn(rt, Descriptor{
		Label:    "logger",
		IsLogger: true,
		MainFn: func(wc *Context) error {
			close(loggerStarted)
			rt.MarkLoggerReady()
			for !wc.ShuttingDown() {
				rt.Shutdown.Wait(10 * time.Millisecond)
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("spawn logger failed: %v", err)
	}

	<-loggerStarted
	waitForState(t, rt, "logger", registry.Running, time.Second)

	initRan := make(chan struct{})
	err = Spawn(rt, Descriptor{
		Label: "worker-a",
		Hooks: Hooks{
			Init: func(wc *Context) error {
				close(initRan)
				return nil
			},
		},
		MainFn: func(wc *Context) error {
			for !wc.ShuttingDown() {
				rt.Shutdown.Wait(10 * time.Millisecond)
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("spawn worker-a failed: %v", err)
	}

	select {
	case <-initRan:
	case <-time.After(time.Second):
		t.Fatal("worker-a's init hook never ran after logger became ready")
	}

	rt.Shutdown.Signal()
	waitForState(t, rt, "worker-a", registry.Terminated, time.Second)
	waitForState(t, rt, "logger", registry.Terminated, time.Second)
}

func TestSpawnBlocksNonLoggerUntilTimeoutWithoutLoggerReady(t *testing.T) {
	rt := newTestRuntime(t)

	err := Spawn(rt, Descriptor{
		Label: "lonely",
		MainFn: func(wc *Context) error {
			t.Error("MainFn should not run; logger never became ready")
			return nil
		},
	})
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	waitForState(t, rt, "lonely", registry.Failed, 2*LoggerReadyTimeout)
}

func TestSuppressedWorkerNeverRegistered(t *testing.T) {
	rt := newTestRuntime(t)
	rt.SetSuppressed([]string{"disabled"})

	if err := Spawn(rt, Descriptor{Label: "disabled", MainFn: func(*Context) error { return nil }}); err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if st := rt.Registry.GetState("disabled"); st != registry.Unknown {
		t.Fatalf("expected suppressed worker to never be registered, got state %v", st)
	}
}

func TestPreCreateAndPostCreateRunInCallerGoroutine(t *testing.T) {
	rt := newTestRuntime(t)
	rt.MarkLoggerReady()

	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, s)
	}

	err := Spawn(rt, Descriptor{
		Label: "ordered",
		Hooks: Hooks{
			PreCreate:  func(string) { record("pre") },
			PostCreate: func(string) { record("post") },
		},
		MainFn: func(wc *Context) error { return nil },
	})
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "pre" || order[1] != "post" {
		t.Fatalf("expected [pre post] both synchronous with Spawn, got %v", order)
	}
}

func TestMsgProcessorPollLoopDispatchesPushedMessages(t *testing.T) {
	rt := newTestRuntime(t)
	rt.MarkLoggerReady()

	var received []byte
	var mu sync.Mutex
	done := make(chan struct{})

	err := Spawn(rt, Descriptor{
		Label:        "consumer",
		BatchSize:    4,
		PollInterval: 5 * time.Millisecond,
		Hooks: Hooks{
			MsgProcessor: func(wc *Context, msg message.Message) {
				mu.Lock()
				received = append(received, msg.Bytes()[0])
				if len(received) == 3 {
					close(done)
				}
				mu.Unlock()
			},
		},
	})
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	waitForState(t, rt, "consumer", registry.Running, time.Second)

	for i := 0; i < 3; i++ {
		m, _ := message.NewMessage(message.Test, []byte{byte(i)})
		if err := rt.Registry.PushMessage("consumer", m, time.Second); err != nil {
			t.Fatalf("push %d failed: %v", i, err)
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poll loop never dispatched all pushed messages")
	}

	rt.Shutdown.Signal()
	waitForState(t, rt, "consumer", registry.Terminated, time.Second)
}

func TestExitHookRunsAfterMainFnReturns(t *testing.T) {
	rt := newTestRuntime(t)
	rt.MarkLoggerReady()

	mainRan := false
	exitRan := false
	done := make(chan struct{})

	err := Spawn(rt, Descriptor{
		Label: "short-lived",
		Hooks: Hooks{
			Exit: func(wc *Context) {
				exitRan = true
				close(done)
			},
		},
		MainFn: func(wc *Context) error {
			mainRan = true
			return nil
		},
	})
	if err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("exit hook never ran")
	}
	if !mainRan || !exitRan {
		t.Fatalf("expected both MainFn and Exit to run, got mainRan=%v exitRan=%v", mainRan, exitRan)
	}
	waitForState(t, rt, "short-lived", registry.Terminated, time.Second)
}
