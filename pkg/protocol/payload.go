package protocol

import (
	"time"

	"github.com/teslashibe/go-hopper/pkg/slip"
)

// StateData carries one sensed robot state.
type StateData struct {
	Seq   uint64          `json:"seq"` // Robot-side counter, echoed in the command
	State slip.RobotState `json:"state"`
}

// NewStateMessage wraps a state for the controller.
func NewStateMessage(seq uint64, rs slip.RobotState) (*Message, error) {
	return NewMessage(TypeState, StateData{Seq: seq, State: rs})
}

// GetStateData decodes a state message.
func (m *Message) GetStateData() (*StateData, error) {
	return decode[StateData](m, TypeState)
}

// CommandData answers the state with the same Seq. Seq 0 is unsolicited and
// only ever carries the zero-torque shutdown command.
type CommandData struct {
	Seq    uint64      `json:"seq"`
	Output slip.Output `json:"output"`
	Phase  slip.Phase  `json:"phase"`
}

// NewCommandMessage wraps the output computed for state seq.
func NewCommandMessage(seq uint64, out slip.Output, phase slip.Phase) (*Message, error) {
	return NewMessage(TypeCommand, CommandData{Seq: seq, Output: out, Phase: phase})
}

// GetCommandData decodes a command message.
func (m *Message) GetCommandData() (*CommandData, error) {
	return decode[CommandData](m, TypeCommand)
}

// ParamsData reports the parameters the controller runs with.
type ParamsData struct {
	Version uint64      `json:"version"`
	Params  slip.Params `json:"params"`
}

// NewParamsMessage wraps a params snapshot.
func NewParamsMessage(version uint64, p slip.Params) (*Message, error) {
	return NewMessage(TypeParams, ParamsData{Version: version, Params: p})
}

// GetParamsData decodes a params message.
func (m *Message) GetParamsData() (*ParamsData, error) {
	return decode[ParamsData](m, TypeParams)
}

// PingData is a link health probe.
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"` // Sender clock, Unix milliseconds
}

// NewPingMessage creates a ping stamped with the local clock.
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id, Timestamp: time.Now().UnixMilli()})
}

// GetPingData decodes a ping message.
func (m *Message) GetPingData() (*PingData, error) {
	return decode[PingData](m, TypePing)
}

// PongData answers a ping. LatencyMs is only meaningful when both clocks agree.
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

// NewPongMessage answers the ping id sent at pingTS.
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{ID: id, PingTS: pingTS, PongTS: pongTS, LatencyMs: pongTS - pingTS})
}

// GetPongData decodes a pong message.
func (m *Message) GetPongData() (*PongData, error) {
	return decode[PongData](m, TypePong)
}
