// Package logger implements the logger satellite: a logqueue.DirectSink
// that also drains the log queue's normal ring path from its own worker
// poll loop, rendering {timestamp, level, thread_label, message} lines
// through logrus, optionally mirrored to a file.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/ibs-source/recorder/internal/logqueue"
	"github.com/ibs-source/recorder/internal/message"
	"github.com/ibs-source/recorder/internal/worker"
	"github.com/ibs-source/recorder/pkg/hexdump"
	"github.com/sirupsen/logrus"
)

// idlePoll bounds how long Run sleeps between empty pops of the log
// queue before checking shutdown again.
const idlePoll = 20 * time.Millisecond

// Sink drains the log queue and implements both logqueue.DirectSink
// (bypass-queue diagnostics) and command.LevelSetter (runtime level
// adjustment via the command protocol).
type Sink struct {
	logger *logrus.Logger
	level  atomic.Int32 // message.Level, checked before every emit

	hexRow int
	hexCol int

	file io.Closer
}

// New builds a Sink writing to stdout and, when filePath is non-empty,
// additionally mirroring every line to that file via io.MultiWriter.
func New(level string, format string, filePath string, hexRow, hexCol int) (*Sink, error) {
	logger := logrus.New()
	logger.SetReportCaller(false)
	// logrus's own level is always Trace: the runtime-adjustable floor is
	// enforced by Sink.level before a line ever reaches a logrus call.
	logger.SetLevel(logrus.TraceLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	s := &Sink{logger: logger, hexRow: hexRow, hexCol: hexCol}
	s.level.Store(int32(parseLevel(level)))

	out := io.Writer(os.Stdout)
	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logger: opening %s: %w", filePath, err)
		}
		s.file = f
		out = io.MultiWriter(os.Stdout, f)
	}
	logger.SetOutput(out)

	return s, nil
}

// Run implements worker.Descriptor.MainFn for the logger worker itself:
// it pops entries from the runtime's log queue and emits each until
// shutdown fires, then drains whatever remains before returning so a
// clean shutdown never discards buffered log lines.
func (s *Sink) Run(wc *worker.Context) error {
	q := wc.Runtime.LogQueue
	for {
		entry, err := q.Pop()
		if err == nil {
			s.Emit(entry)
			continue
		}
		if wc.ShuttingDown() {
			return s.drain(q)
		}
		time.Sleep(idlePoll)
	}
}

// drain empties any entries left in q once shutdown has been observed.
func (s *Sink) drain(q *logqueue.Queue) error {
	for {
		entry, err := q.Pop()
		if err != nil {
			return nil
		}
		s.Emit(entry)
	}
}

// Close releases the mirrored log file, if one was opened.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// SetLevel implements command.LevelSetter: changes the minimum level at
// runtime without touching logrus's own level (entries below the new
// floor are simply never rendered).
func (s *Sink) SetLevel(level message.Level) {
	s.level.Store(int32(level))
}

func (s *Sink) currentLevel() message.Level {
	return message.Level(s.level.Load())
}

// Direct implements logqueue.DirectSink: entries emitted outside the
// normal ring path (capacity hysteresis, overflow purge) still respect
// the runtime level floor.
func (s *Sink) Direct(level message.Level, label, text string) {
	s.emit(level, label, text)
}

// Emit renders one entry popped from the log queue's normal ring path.
func (s *Sink) Emit(entry message.LogEntry) {
	s.emit(entry.Level, entry.Label(), entry.Text())
}

func (s *Sink) emit(level message.Level, label, text string) {
	if level < s.currentLevel() {
		return
	}
	entry := s.logger.WithFields(logrus.Fields{"thread_label": label})
	logWithLevel(entry, level, text)
}

// HexDump logs a hex+ASCII rendering of data at Trace level, tagged with
// label, using the configured row/column widths. A no-op below Trace.
func (s *Sink) HexDump(label string, data []byte) {
	if s.currentLevel() > message.LevelTrace {
		return
	}
	dump := hexdump.Format(data, s.hexRow, s.hexCol)
	s.emit(message.LevelTrace, label, "\n"+dump)
}

func logWithLevel(entry *logrus.Entry, level message.Level, text string) {
	switch level {
	case message.LevelTrace:
		entry.Trace(text)
	case message.LevelDebug:
		entry.Debug(text)
	case message.LevelInfo:
		entry.Info(text)
	case message.LevelWarn:
		entry.Warn(text)
	case message.LevelError:
		entry.Error(text)
	default:
		entry.Info(text)
	}
}

func parseLevel(level string) message.Level {
	switch level {
	case "trace":
		return message.LevelTrace
	case "debug":
		return message.LevelDebug
	case "warn", "warning":
		return message.LevelWarn
	case "error":
		return message.LevelError
	default:
		return message.LevelInfo
	}
}
