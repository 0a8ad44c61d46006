package term

import (
	"bytes"

	"github.com/vibefoundry/vibefoundry-sandbox/internal/codec"
)

const (
	controlResize = "resize"
	controlPing   = "ping"
	controlPong   = "pong"
)

// controlFrame is the small JSON protocol layered over the raw byte stream.
// Anything that is not a recognized control frame is terminal input/output.
type controlFrame struct {
	Type string `json:"type"`
	Cols uint16 `json:"cols,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
}

// parseControl decodes data as a control frame. Returns false for anything
// else, including JSON that merely looks similar, so shell traffic passes
// through untouched.
func parseControl(data []byte) (*controlFrame, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}

	var frame controlFrame
	if err := codec.JSONUnmarshal(trimmed, &frame); err != nil {
		return nil, false
	}

	switch frame.Type {
	case controlResize, controlPing, controlPong:
		return &frame, true
	}
	return nil, false
}

func marshalControl(frame *controlFrame) []byte {
	raw, _ := codec.JSONMarshal(frame)
	return raw
}
