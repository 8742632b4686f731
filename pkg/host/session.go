// Package host runs a slip controller on behalf of a robot.
//
// A Session owns one controller's state and replaces the component
// lifecycle hooks (configure/start/update/stop) with explicit calls: it is
// initialised on construction, stepped once per received state and shut down
// with an immediate zero-torque command.
package host

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	hlog "github.com/teslashibe/go-hopper/internal/log"
	"github.com/teslashibe/go-hopper/pkg/params"
	"github.com/teslashibe/go-hopper/pkg/slip"
)

// Publisher receives one telemetry record per cycle. Implementations must
// not block.
type Publisher interface {
	Publish(rec slip.Record)
}

// HeartbeatEvery is the number of cycles between heartbeat log lines
// (5 s at 1 kHz).
const HeartbeatEvery = 5000

// Session drives one controller instance.
type Session struct {
	id     string
	mode   slip.Mode
	ctrl   slip.Controller
	params *params.Store
	pub    Publisher
	log    *slog.Logger

	// Serialises cycles; held only for the duration of one Step.
	mu      sync.Mutex
	state   slip.State
	enabled bool

	// Diagnostics
	cycles     atomic.Uint64
	saturated  atomic.Uint64
	touchdowns atomic.Uint64
	liftoffs   atomic.Uint64
	version    atomic.Uint64 // Params version used by the last cycle
}

// Option configures a Session.
type Option func(*Session)

// WithPublisher attaches a telemetry publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Session) { s.pub = p }
}

// WithLogger replaces the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithID sets the session ID instead of a generated UUID.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// NewSession creates an enabled session. The controller is initialised here
// so no cycle can run against an uninitialised state.
func NewSession(mode slip.Mode, store *params.Store, opts ...Option) (*Session, error) {
	ctrl, err := slip.New(mode)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:     uuid.New().String(),
		mode:   mode,
		ctrl:   ctrl,
		params: store,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = hlog.With("session", s.id, "mode", string(mode))
	}

	s.state = ctrl.Initialize(store.Params())
	s.enabled = true
	s.log.Info("controller initialized")
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Mode returns the controller variant.
func (s *Session) Mode() slip.Mode {
	return s.mode
}

// Step runs one control cycle against the current params snapshot. A
// disabled session returns the zero-torque command.
func (s *Session) Step(rs slip.RobotState) slip.Output {
	snap := s.params.Snapshot()

	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return s.ctrl.Shutdown(slip.State{})
	}
	out, next := s.ctrl.Step(s.state, rs, snap.Params)
	s.state = next
	s.mu.Unlock()

	n := s.cycles.Add(1)
	s.version.Store(snap.Version)
	if out.Saturated > 0 {
		s.saturated.Add(uint64(out.Saturated))
	}

	switch out.Event {
	case slip.EventTouchdown:
		s.touchdowns.Add(1)
	case slip.EventLiftoff:
		s.liftoffs.Add(1)
	}
	if out.Event != slip.EventNone {
		s.log.Debug("phase transition",
			"event", out.Event.String(),
			"phase", next.Phase.String(),
			"time", next.Time,
			"peak_height", next.PeakHeight)
	}
	if n%HeartbeatEvery == 0 {
		s.log.Info("heartbeat",
			"cycles", n,
			"phase", next.Phase.String(),
			"peak_height", next.PeakHeight,
			"saturated", s.saturated.Load())
	}

	if s.pub != nil {
		s.pub.Publish(slip.NewRecord(out, next))
	}
	return out
}

// Enable re-initialises the controller and resumes stepping. Enabling an
// enabled session is a no-op.
func (s *Session) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enabled {
		return
	}
	s.state = s.ctrl.Initialize(s.params.Params())
	s.enabled = true
	s.log.Info("controller enabled")
}

// Disable stops the controller and returns the zero-torque command to send
// immediately.
func (s *Session) Disable() slip.Output {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enabled {
		s.enabled = false
		s.log.Info("controller disabled")
	}
	return s.ctrl.Shutdown(s.state)
}

// Enabled reports whether the session is stepping the controller.
func (s *Session) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// State returns a copy of the controller state.
func (s *Session) State() slip.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats contains session diagnostics.
type Stats struct {
	ID            string  `json:"id"`
	Mode          string  `json:"mode"`
	Enabled       bool    `json:"enabled"`
	Phase         string  `json:"phase"`
	PeakHeight    float64 `json:"peak_height"`
	Cycles        uint64  `json:"cycles"`
	Saturated     uint64  `json:"saturated"`
	Touchdowns    uint64  `json:"touchdowns"`
	Liftoffs      uint64  `json:"liftoffs"`
	ParamsVersion uint64  `json:"params_version"`
}

// Stats returns the session diagnostics.
func (s *Session) Stats() Stats {
	st := s.State()
	return Stats{
		ID:            s.id,
		Mode:          string(s.mode),
		Enabled:       s.Enabled(),
		Phase:         st.Phase.String(),
		PeakHeight:    st.PeakHeight,
		Cycles:        s.cycles.Load(),
		Saturated:     s.saturated.Load(),
		Touchdowns:    s.touchdowns.Load(),
		Liftoffs:      s.liftoffs.Load(),
		ParamsVersion: s.version.Load(),
	}
}
