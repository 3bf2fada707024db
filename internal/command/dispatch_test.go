package command

import (
	"sync"
	"testing"

	"github.com/ibs-source/recorder/internal/message"
)

type fakeLevelSetter struct {
	mu  sync.Mutex
	lvl message.Level
	set bool
}

func (f *fakeLevelSetter) SetLevel(l message.Level) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lvl = l
	f.set = true
}

type fakeDumper struct {
	mu     sync.Mutex
	labels []string
	bodies [][]byte
}

func (f *fakeDumper) HexDump(label string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels = append(f.labels, label)
	f.bodies = append(f.bodies, append([]byte(nil), data...))
}

func TestDispatchSetsLogLevel(t *testing.T) {
	setter := &fakeLevelSetter{}
	h := NewHandler(setter, nil, nil)

	h.Dispatch(1, []byte("log_level = debug"))

	setter.mu.Lock()
	defer setter.mu.Unlock()
	if !setter.set || setter.lvl != message.LevelDebug {
		t.Fatalf("expected LevelDebug to be set, got set=%v lvl=%v", setter.set, setter.lvl)
	}
}

func TestDispatchUnknownVerbWarnsButDoesNotPanic(t *testing.T) {
	var warnings []string
	h := NewHandler(nil, func(level message.Level, text string) {
		if level != message.LevelWarn {
			t.Fatalf("expected Warn level, got %v", level)
		}
		warnings = append(warnings, text)
	}, nil)

	h.Dispatch(1, []byte("frobnicate = true"))

	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %d: %v", len(warnings), warnings)
	}
}

func TestDispatchMalformedBodyWarns(t *testing.T) {
	var warned bool
	h := NewHandler(nil, func(message.Level, string) { warned = true }, nil)
	h.Dispatch(1, []byte("not-a-kv-pair"))
	if !warned {
		t.Fatal("expected a warning for a malformed body")
	}
}

func TestDispatchUnknownLevelValueWarns(t *testing.T) {
	var warned bool
	setter := &fakeLevelSetter{}
	h := NewHandler(setter, func(message.Level, string) { warned = true }, nil)
	h.Dispatch(1, []byte("log_level = nonsense"))
	if !warned {
		t.Fatal("expected a warning for an unrecognized level value")
	}
	if setter.set {
		t.Fatal("expected SetLevel not to be called for an invalid value")
	}
}

func TestDispatchHexDumpsAcceptedBody(t *testing.T) {
	dumper := &fakeDumper{}
	h := NewHandler(nil, nil, dumper)

	h.Dispatch(1, []byte("log_level = info"))

	dumper.mu.Lock()
	defer dumper.mu.Unlock()
	if len(dumper.labels) != 1 || dumper.labels[0] != "command_interface" {
		t.Fatalf("expected one command_interface hex dump, got %v", dumper.labels)
	}
	if string(dumper.bodies[0]) != "log_level = info" {
		t.Fatalf("expected dumped body to match the decoded frame, got %q", dumper.bodies[0])
	}
}
