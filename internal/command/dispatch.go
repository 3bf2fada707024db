// Package command implements the command-interface satellite: a verb
// dispatcher for decoded protocol bodies (§4.F→dispatch handoff) and the
// TCP connection pool that drives the protocol.Decoder per connection
// (§6's command_interface.listening_port).
package command

import (
	"strings"

	"github.com/ibs-source/recorder/internal/message"
)

// LevelSetter receives a parsed log_level verb. The logger sink
// implements this to change its minimum level at runtime.
type LevelSetter interface {
	SetLevel(level message.Level)
}

// Logf receives a diagnostic the dispatcher itself wants to emit
// (e.g. an unknown-verb warning), independent of the per-packet ACK.
type Logf func(level message.Level, text string)

// HexDumper renders a Trace-level hex+ASCII dump of an accepted command
// frame's raw body, tagged with a label. The logger sink implements
// this.
type HexDumper interface {
	HexDump(label string, data []byte)
}

// Handler dispatches decoded command bodies. Unknown verbs are logged
// at Warn and otherwise ignored: the connection stays open and the FSM
// still emits its ACK, since framing succeeded even when the verb did
// not (spec.md open question (b)).
type Handler struct {
	setter LevelSetter
	logf   Logf
	dumper HexDumper
}

// NewHandler builds a Handler. setter/logf/dumper may each be nil; a nil
// setter makes log_level verbs a no-op, a nil logf silences diagnostics,
// and a nil dumper skips the Trace-level body dump.
func NewHandler(setter LevelSetter, logf Logf, dumper HexDumper) *Handler {
	return &Handler{setter: setter, logf: logf, dumper: dumper}
}

// Dispatch implements protocol.Dispatch.
func (h *Handler) Dispatch(index uint32, body []byte) {
	if h.dumper != nil {
		h.dumper.HexDump("command_interface", body)
	}

	key, value, ok := parseVerb(string(body))
	if !ok {
		h.warn("malformed command body (expected \"key = value\")")
		return
	}

	switch key {
	case "log_level":
		lvl, ok := parseLevel(value)
		if !ok {
			h.warn("unknown log_level value: " + value)
			return
		}
		if h.setter != nil {
			h.setter.SetLevel(lvl)
		}
	default:
		h.warn("unknown command verb: " + key)
	}
}

func (h *Handler) warn(text string) {
	if h.logf != nil {
		h.logf(message.LevelWarn, text)
	}
}

// parseVerb splits a "key = value" body, tolerating surrounding
// whitespace. An empty body or one without '=' is malformed.
func parseVerb(body string) (key, value string, ok bool) {
	idx := strings.IndexByte(body, '=')
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(body[:idx])
	value = strings.TrimSpace(body[idx+1:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

func parseLevel(s string) (message.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return message.LevelTrace, true
	case "debug":
		return message.LevelDebug, true
	case "info":
		return message.LevelInfo, true
	case "warn", "warning":
		return message.LevelWarn, true
	case "error":
		return message.LevelError, true
	default:
		return 0, false
	}
}
