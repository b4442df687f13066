package chathub

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/chathub/pkg/sydney"
)

// RecordSeparator terminates every JSON frame on the wire.
const RecordSeparator byte = 0x1e

// FrameKind classifies a decoded frame.
type FrameKind int

const (
	// FramePartial is an in-progress update or any other data frame the turn ignores.
	FramePartial FrameKind = iota
	// FrameKeepalive must be answered with the same frame.
	FrameKeepalive
	// FrameTerminal carries the complete answer for the turn.
	FrameTerminal
	// FrameCompletion ends the invocation, possibly with an error.
	FrameCompletion
	// FrameClose is sent by the server before it drops the connection.
	FrameClose
)

func (k FrameKind) String() string {
	switch k {
	case FramePartial:
		return "partial"
	case FrameKeepalive:
		return "keepalive"
	case FrameTerminal:
		return "terminal"
	case FrameCompletion:
		return "completion"
	case FrameClose:
		return "close"
	default:
		return fmt.Sprintf("FrameKind(%d)", int(k))
	}
}

// Frame is one record-separated JSON object from an inbound message.
type Frame struct {
	Kind     FrameKind
	Type     int
	Raw      []byte
	Response *sydney.Response
}

// Reply returns the frame re-encoded for the wire. Keepalives are answered
// with exactly this payload.
func (f Frame) Reply() []byte {
	out := make([]byte, 0, len(f.Raw)+1)
	out = append(out, f.Raw...)
	return append(out, RecordSeparator)
}

// Decode splits an inbound websocket message into its frames, in order.
// Empty records, including the one after the trailing separator, are skipped.
func Decode(msg []byte) ([]Frame, error) {
	var frames []Frame
	for _, chunk := range bytes.Split(msg, []byte{RecordSeparator}) {
		chunk = bytes.TrimSpace(chunk)
		if len(chunk) == 0 {
			continue
		}

		var resp sydney.Response
		if err := json.Unmarshal(chunk, &resp); err != nil {
			return nil, &sydney.ParseError{Frame: chunk, Err: err}
		}

		frames = append(frames, Frame{
			Kind:     classify(&resp),
			Type:     resp.Type,
			Raw:      chunk,
			Response: &resp,
		})
	}
	return frames, nil
}

func classify(resp *sydney.Response) FrameKind {
	switch {
	case resp.Type == sydney.TypePing:
		return FrameKeepalive
	case resp.Terminal():
		return FrameTerminal
	case resp.Type == sydney.TypeCompletion:
		return FrameCompletion
	case resp.Type == sydney.TypeClose:
		return FrameClose
	default:
		return FramePartial
	}
}

// Encode marshals v as a single wire frame.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}
	return append(data, RecordSeparator), nil
}
