// Package hub fans controller telemetry out to websocket subscribers.
//
// The control cycle hands records to Publish, which never blocks. Run encodes
// them and queues one frame per subscriber; a subscriber that falls behind is
// disconnected instead of slowing everyone else.
package hub

import (
	"encoding/json"

	"github.com/teslashibe/go-hopper/pkg/slip"
)

// Kind tags a telemetry frame.
type Kind string

const (
	KindRecord Kind = "record" // One control cycle
	KindParams Kind = "params" // Parameter snapshot replaced
	KindStatus Kind = "status" // Controllers enabled or disabled
)

// Frame is the JSON object subscribers receive. Record frames carry Record,
// the others carry Data.
type Frame struct {
	Kind   Kind         `json:"kind"`
	Source string       `json:"source"`
	Record *slip.Record `json:"record,omitempty"`
	Data   any          `json:"data,omitempty"`
}

func encodeRecord(source string, rec slip.Record) ([]byte, error) {
	return json.Marshal(Frame{Kind: KindRecord, Source: source, Record: &rec})
}
