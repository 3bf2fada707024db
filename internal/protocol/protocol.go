// Package protocol implements the framed command wire protocol of spec
// §4.F: a 4-state decoder (WaitStart/WaitLength/WaitMessage/SendAck)
// over big-endian START/LENGTH/INDEX/BODY/END frames, with resync-on-
// error semantics and a fixed-text ACK reply.
//
// The incremental-buffer, never-disconnect-on-framing-error shape
// follows the same ctx.Done()-polled, backoff-and-continue loop idiom
// used elsewhere in this codebase for recoverable I/O errors,
// generalized from a batch-fetch loop to a byte-stream decoder.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// Wire markers, per spec §4.F.
const (
	StartMarker uint32 = 0xBAADF00D
	EndMarker   uint32 = 0xDEADBEEF
)

// markerSize is the byte width of each of START/LENGTH/INDEX/END.
const markerSize = 4

// headerOverhead is START+LENGTH+INDEX+END (16 bytes): the minimum
// valid LENGTH, and the part of LENGTH that is not body (the body is
// LENGTH-headerOverhead bytes).
const headerOverhead = 4 * markerSize

// DefaultMaxMessage bounds LENGTH when a Decoder is built with New.
const DefaultMaxMessage = 64 * 1024

// State is the FSM state of spec §3's Command FSM State.
type State int

const (
	WaitStart State = iota
	WaitLength
	WaitMessage
	SendAck
)

func (s State) String() string {
	switch s {
	case WaitStart:
		return "wait_start"
	case WaitLength:
		return "wait_length"
	case WaitMessage:
		return "wait_message"
	case SendAck:
		return "send_ack"
	default:
		return "unknown"
	}
}

// startHighByte is the first byte on the wire of StartMarker, used by
// the WaitStart resync scan.
var startHighByte = byte(StartMarker >> 24)

// Dispatch is called once per successfully decoded packet body, with
// the sender's packet index and the raw body bytes (not
// null-terminated; callers needing a C-string boundary should append
// their own, spec §4.F describes null-termination as an implementation
// detail of the handoff, not part of the wire format).
type Dispatch func(index uint32, body []byte)

// Decoder holds one connection's FSM state and its unconsumed byte
// buffer. The zero value is not usable; construct with New.
type Decoder struct {
	maxMessage uint32
	state      State
	buf        []byte

	expectedLength uint32
	pendingIndex   uint32

	ackIndex uint32
}

// New constructs a Decoder in WaitStart with the given maximum LENGTH
// (DefaultMaxMessage if maxMessage == 0).
func New(maxMessage uint32) *Decoder {
	if maxMessage == 0 {
		maxMessage = DefaultMaxMessage
	}
	return &Decoder{maxMessage: maxMessage, state: WaitStart}
}

// State returns the decoder's current FSM state, for tests and metrics.
func (d *Decoder) State() State { return d.state }

// Feed appends newly read bytes and decodes as many complete frames as
// the buffer allows, invoking dispatch for each valid body. It returns
// the ACK frames (one per valid body, in order) the caller must write
// back to the connection completely and in order.
func (d *Decoder) Feed(data []byte, dispatch Dispatch) [][]byte {
	d.buf = append(d.buf, data...)

	var acks [][]byte
	for {
		switch d.state {
		case WaitStart:
			if !d.stepWaitStart() {
				return acks
			}
		case WaitLength:
			if !d.stepWaitLength() {
				return acks
			}
		case WaitMessage:
			if !d.stepWaitMessage(dispatch) {
				return acks
			}
		case SendAck:
			acks = append(acks, d.buildAck(d.pendingIndex))
			d.resetPacket()
			d.state = WaitStart
		}
	}
}

// stepWaitStart returns false when more data is needed before it can
// make progress.
func (d *Decoder) stepWaitStart() bool {
	if len(d.buf) < markerSize {
		return false
	}
	if binary.BigEndian.Uint32(d.buf[:markerSize]) == StartMarker {
		d.buf = d.buf[markerSize:]
		d.state = WaitLength
		return true
	}

	// Resync: scan forward (from 1, since position 0 already failed a
	// full match) for the next byte that could start a marker, consuming
	// at least 1 byte so the scan always makes progress.
	next := -1
	for i := 1; i < len(d.buf); i++ {
		if d.buf[i] == startHighByte {
			next = i
			break
		}
	}
	if next == -1 {
		d.buf = d.buf[:0]
	} else {
		d.buf = d.buf[next:]
	}
	return true
}

func (d *Decoder) stepWaitLength() bool {
	if len(d.buf) < markerSize {
		return false
	}
	length := binary.BigEndian.Uint32(d.buf[:markerSize])
	if length < headerOverhead || length > d.maxMessage {
		d.failPacket()
		return true
	}
	d.expectedLength = length
	d.buf = d.buf[markerSize:]
	d.state = WaitMessage
	return true
}

func (d *Decoder) stepWaitMessage(dispatch Dispatch) bool {
	remaining := d.expectedLength - 2*markerSize // INDEX + BODY + END
	if uint32(len(d.buf)) < remaining {
		return false
	}

	bodyLen := d.expectedLength - headerOverhead
	index := binary.BigEndian.Uint32(d.buf[:markerSize])
	body := d.buf[markerSize : markerSize+bodyLen]
	endOffset := markerSize + bodyLen
	end := binary.BigEndian.Uint32(d.buf[endOffset : endOffset+markerSize])

	d.buf = d.buf[remaining:]

	if end != EndMarker {
		d.failPacket()
		return true
	}

	d.pendingIndex = index
	if dispatch != nil {
		dispatch(index, body)
	}
	d.state = SendAck
	return true
}

// failPacket implements spec §4.F's recovery rule: on any fail, consume
// the remaining buffer and reset to WaitStart — never disconnect for a
// framing error alone.
func (d *Decoder) failPacket() {
	d.buf = d.buf[:0]
	d.resetPacket()
	d.state = WaitStart
}

func (d *Decoder) resetPacket() {
	d.expectedLength = 0
	d.pendingIndex = 0
}

// buildAck assembles "START(4) | ACK_LENGTH(4) | ACK_INDEX(4) |
// \"ACK <received_index>\" | END(4)", per spec §4.F, using this
// connection's own monotonic ACK_INDEX counter.
func (d *Decoder) buildAck(receivedIndex uint32) []byte {
	ackIndex := d.ackIndex
	d.ackIndex++

	text := []byte(fmt.Sprintf("ACK %d", receivedIndex))
	length := uint32(headerOverhead + len(text))

	frame := make([]byte, 0, length)
	frame = binary.BigEndian.AppendUint32(frame, StartMarker)
	frame = binary.BigEndian.AppendUint32(frame, length)
	frame = binary.BigEndian.AppendUint32(frame, ackIndex)
	frame = append(frame, text...)
	frame = binary.BigEndian.AppendUint32(frame, EndMarker)
	return frame
}

// EncodeFrame assembles a non-ACK command frame (START|LENGTH|INDEX|
// BODY|END) for a given index and body, primarily for tests and for
// any peer acting as a command sender.
func EncodeFrame(index uint32, body []byte) []byte {
	length := uint32(headerOverhead + len(body))
	frame := make([]byte, 0, length)
	frame = binary.BigEndian.AppendUint32(frame, StartMarker)
	frame = binary.BigEndian.AppendUint32(frame, length)
	frame = binary.BigEndian.AppendUint32(frame, index)
	frame = append(frame, body...)
	frame = binary.BigEndian.AppendUint32(frame, EndMarker)
	return frame
}
