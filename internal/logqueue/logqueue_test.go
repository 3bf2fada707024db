package logqueue

import (
	"sync"
	"testing"
	"time"

	"github.com/ibs-source/recorder/internal/message"
)

type fakeSink struct {
	mu      sync.Mutex
	entries []sinkEntry
}

type sinkEntry struct {
	level message.Level
	label string
	text  string
}

func (f *fakeSink) Direct(level message.Level, label, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, sinkEntry{level, label, text})
}

func (f *fakeSink) snapshot() []sinkEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sinkEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

func entry(label, text string) message.LogEntry {
	return message.NewLogEntry(0, message.LevelInfo, time.Now(), label, text)
}

func TestPushRejectsEmptyLabel(t *testing.T) {
	q := New(16, &fakeSink{})
	q.Push(entry("", "no label"))
	if _, err := q.Pop(); err != ErrEmpty {
		t.Fatalf("expected queue to stay empty after rejecting unlabeled entry, got err=%v", err)
	}
}

func TestPushPopNoTornRead(t *testing.T) {
	q := New(64, &fakeSink{})
	want := entry("worker-1", "hello world")
	q.Push(want)

	got, err := q.Pop()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Label() != want.Label() || got.Text() != want.Text() {
		t.Fatalf("expected entry to round-trip unchanged, got label=%q text=%q", got.Label(), got.Text())
	}
}

func (f *fakeSink) countContaining(sub string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if contains(e.text, sub) {
			n++
		}
	}
	return n
}

func TestConcurrentProducersSingleConsumerNoTornReads(t *testing.T) {
	sink := &fakeSink{}
	q := New(128, sink)
	const producers = 16
	const perProducer = 500

	seen := make(map[string]bool)
	var seenMu sync.Mutex

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				idx := q.NextIndex()
				label := "producer"
				text := itoa(p) + ":" + itoa(i)
				e := message.NewLogEntry(idx, message.LevelInfo, time.Now(), label, text)
				q.Push(e)
			}
		}(p)
	}

	// When the ring fills, the overflow purge hands the oldest entries to
	// the direct sink (counted by DroppedOverflow) and a producer that
	// exhausts MaxRetry on a full ring emits its entry directly, so every
	// pushed entry ends up either popped, purged, or directly emitted.
	done := make(chan struct{})
	go func() {
		defer close(done)
		total := producers * perProducer
		for len(seen)+int(q.DroppedOverflow())+sink.countContaining("emitting directly") < total {
			e, err := q.Pop()
			if err != nil {
				continue
			}
			txt := e.Text()
			seenMu.Lock()
			if seen[txt] {
				seenMu.Unlock()
				t.Errorf("observed duplicate/torn entry: %q", txt)
				return
			}
			seen[txt] = true
			seenMu.Unlock()
		}
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("consumer did not drain all entries, saw %d", len(seen))
	}
}

func TestOverflowPurgeEmitsBracketingErrorsAndDrains(t *testing.T) {
	sink := &fakeSink{}
	q := New(16, sink) // rounds to 16

	// Pause consumption: push more than capacity from several producers.
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 8; i++ {
				q.Push(entry("producer", itoa(p)+":"+itoa(i)))
			}
		}(p)
	}
	wg.Wait()

	entries := sink.snapshot()
	var sawStart, sawComplete, purgedCount bool
	purges := 0
	for _, e := range entries {
		if e.level != message.LevelError {
			continue
		}
		switch {
		case containsAll(e.text, "overflow", "purging"):
			sawStart = true
		case e.text == "purge complete":
			sawComplete = true
		case containsAll(e.text, "purged (overflow)"):
			purges++
			purgedCount = true
		}
	}
	if !sawStart {
		t.Error("expected an overflow-start ERROR notice")
	}
	if !sawComplete {
		t.Error("expected a purge-complete ERROR notice")
	}
	if !purgedCount || purges < 1 {
		t.Errorf("expected at least one purged-entry notice, got %d", purges)
	}

	// Drain whatever remains; queue must eventually empty.
	drained := 0
	for {
		if _, err := q.Pop(); err != nil {
			break
		}
		drained++
		if drained > 1000 {
			t.Fatal("queue never drained to empty")
		}
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !contains(s, sub) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	return len(sub) == 0 || (len(s) >= len(sub) && indexOf(s, sub) >= 0)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestCapacityHysteresisSuspendsAndResumes(t *testing.T) {
	sink := &fakeSink{}
	q := New(16, sink)

	// Push samples occupancy before inserting, so the 17th push is the
	// first to observe a full (16/16) ring.
	for i := 0; i < 17; i++ {
		q.Push(entry("w", itoa(i)))
	}
	if !q.IsSuspended() {
		t.Fatal("expected queue to be suspended near capacity")
	}

	for i := 0; i < 10; i++ {
		if _, err := q.Pop(); err != nil {
			break
		}
	}
	q.Push(entry("w", "trigger-hysteresis-recheck"))
	if q.IsSuspended() {
		t.Fatal("expected queue to resume after draining below 60%")
	}
}
