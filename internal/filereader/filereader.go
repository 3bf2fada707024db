// Package filereader implements the file_reader satellite: a worker
// that reads a configured file in fixed-size chunks and pushes each
// chunk as a message.FileChunk into a target worker's inbox, honoring
// read_mode (once/loop), inter-chunk and inter-reload delays, and the
// target inbox's block-or-drop policy when full. The loop/backoff shape
// follows this codebase's ctx.Done()-polled fetch loop.
package filereader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ibs-source/recorder/internal/config"
	"github.com/ibs-source/recorder/internal/message"
	"github.com/ibs-source/recorder/internal/worker"
)

// Reader drives one file_reader worker instance.
type Reader struct {
	cfg config.FileReaderConfig
}

// New builds a Reader from its configuration section.
func New(cfg config.FileReaderConfig) *Reader {
	return &Reader{cfg: cfg}
}

// Run implements worker.Descriptor.MainFn: it reads the configured file
// until EOF, pushing one message.FileChunk per chunk_size bytes, then
// either returns (read_mode=once) or sleeps reload_delay and starts
// over (read_mode=loop). read_mode=watch is accepted by config
// validation but behaves as once here; a real filesystem-watch
// implementation has no SPEC_FULL.md consumer yet.
func (r *Reader) Run(wc *worker.Context) error {
	mode := r.cfg.ReadMode
	if mode == config.ReadModeWatch {
		wc.Logf(message.LevelWarn, "file_reader.read_mode=watch is not implemented; behaving as once")
		mode = config.ReadModeOnce
	}

	for {
		if wc.ShuttingDown() {
			return nil
		}
		if err := r.readOnce(wc); err != nil {
			wc.Logf(message.LevelError, fmt.Sprintf("file read failed: %v", err))
		}
		if mode == config.ReadModeOnce {
			return nil
		}
		if !sleepOrShutdown(wc, r.cfg.ReloadDelay) {
			return nil
		}
	}
}

func (r *Reader) readOnce(wc *worker.Context) error {
	f, err := os.Open(r.cfg.Path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", r.cfg.Path, err)
	}
	defer f.Close()

	buf := make([]byte, r.cfg.ChunkSize)
	var sent, lastLog int
	lastProgress := time.Now()

	for {
		if wc.ShuttingDown() {
			return nil
		}
		n, readErr := f.Read(buf)
		if n > 0 {
			if err := r.pushChunk(wc, buf[:n]); err != nil {
				wc.Logf(message.LevelWarn, fmt.Sprintf("dropped chunk: %v", err))
			} else {
				sent++
			}
			if r.cfg.LogProgress && time.Since(lastProgress) >= r.cfg.ProgressInterval {
				wc.Logf(message.LevelInfo, fmt.Sprintf("progress: %d chunks sent (+%d)", sent, sent-lastLog))
				lastLog = sent
				lastProgress = time.Now()
			}
			if r.cfg.ChunkDelay > 0 {
				if !sleepOrShutdown(wc, r.cfg.ChunkDelay) {
					return nil
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return readErr
		}
	}
}

// pushChunk pushes data as one or more message.FileChunk values,
// splitting at message.ContentMax since a single Message's content
// block cannot hold more than that. chunk_size may legally exceed
// ContentMax; splitting (rather than dropping the oversized read) is
// what lets the reader honor any configured chunk_size without losing
// bytes.
func (r *Reader) pushChunk(wc *worker.Context, data []byte) error {
	timeout := time.Duration(0)
	if r.cfg.BlockWhenFull {
		timeout = r.cfg.QueueTimeout
	}

	for len(data) > 0 {
		n := len(data)
		if n > message.ContentMax {
			n = message.ContentMax
		}
		msg, err := message.NewMessage(message.FileChunk, data[:n])
		if err != nil {
			return err
		}
		if err := wc.PushTo(r.cfg.TargetWorker, msg, timeout); err != nil {
			return err
		}
		data = data[n:]
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
