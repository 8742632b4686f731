package host

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	hlog "github.com/teslashibe/go-hopper/internal/log"
	"github.com/teslashibe/go-hopper/pkg/params"
	"github.com/teslashibe/go-hopper/pkg/slip"
)

// recorder is a Publisher that keeps every record.
type recorder struct {
	mu   sync.Mutex
	recs []slip.Record
}

func (r *recorder) Publish(rec slip.Record) {
	r.mu.Lock()
	r.recs = append(r.recs, rec)
	r.mu.Unlock()
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

func newTestSession(t *testing.T, mode slip.Mode, opts ...Option) (*Session, *params.Store) {
	t.Helper()
	store, err := params.NewStore(slip.DefaultParams())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	var buf bytes.Buffer
	opts = append([]Option{WithLogger(hlog.New(&buf, "error"))}, opts...)
	s, err := NewSession(mode, store, opts...)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s, store
}

func stateAt(time uint64, z float64, contact bool) slip.RobotState {
	var rs slip.RobotState
	rs.Time = time
	rs.Body.Z = z
	for i := range rs.Legs {
		a, b := slip.MotorTargets(math.Pi/2, 0.7)
		rs.Legs[i] = slip.LegState{MotorAngleA: a, MotorAngleB: b, LegAngleA: a, LegAngleB: b}
	}
	rs.Legs[slip.Left].ToeSwitch = contact
	return rs
}

func TestNewSession_UnknownMode(t *testing.T) {
	store, _ := params.NewStore(slip.DefaultParams())
	if _, err := NewSession("run", store); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestNewSession_Initialized(t *testing.T) {
	s, _ := newTestSession(t, slip.ModeHop)
	if !s.Enabled() {
		t.Error("new session should be enabled")
	}
	if s.ID() == "" {
		t.Error("session ID should be generated")
	}
	st := s.State()
	if st.Phase != slip.PhaseFlight || st.PeakHeight != 0 {
		t.Errorf("state = %+v, want flight with zero peak", st)
	}
}

func TestSession_WithID(t *testing.T) {
	s, _ := newTestSession(t, slip.ModeWalk, WithID("robot-7"))
	if s.ID() != "robot-7" {
		t.Errorf("ID = %q, want robot-7", s.ID())
	}
	if s.Mode() != slip.ModeWalk {
		t.Errorf("Mode = %q, want walk", s.Mode())
	}
}

func TestSession_StepTracksTransitions(t *testing.T) {
	rec := &recorder{}
	s, _ := newTestSession(t, slip.ModeHop, WithPublisher(rec))

	s.Step(stateAt(1, 1.0, false))
	out := s.Step(stateAt(2, 0.9, true))
	if out.Event != slip.EventTouchdown {
		t.Fatalf("event = %v, want touchdown", out.Event)
	}
	out = s.Step(stateAt(3, 0.9, false))
	if out.Event != slip.EventLiftoff {
		t.Fatalf("event = %v, want liftoff", out.Event)
	}

	st := s.Stats()
	if st.Cycles != 3 || st.Touchdowns != 1 || st.Liftoffs != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.ParamsVersion != 1 {
		t.Errorf("params version = %d, want 1", st.ParamsVersion)
	}
	if rec.len() != 3 {
		t.Errorf("published %d records, want 3", rec.len())
	}
	if rec.recs[1].Event != slip.EventTouchdown || rec.recs[1].Phase != slip.PhaseStance {
		t.Errorf("record = %+v", rec.recs[1])
	}
}

func TestSession_UsesLatestParams(t *testing.T) {
	s, store := newTestSession(t, slip.ModeHop)
	s.Step(stateAt(1, 1.0, false))

	store.Update(func(p *slip.Params) { p.FlightP = 10 })
	s.Step(stateAt(2, 1.0, false))

	if v := s.Stats().ParamsVersion; v != 2 {
		t.Errorf("params version = %d, want 2", v)
	}
}

func TestSession_DisableZeroesOutput(t *testing.T) {
	s, _ := newTestSession(t, slip.ModeHop)

	// Leg short of its flight target so the law commands torque.
	rs := stateAt(1, 1.0, false)
	if out := s.Step(rs); out.Zero() {
		t.Fatal("expected non-zero torque while enabled")
	}

	if out := s.Disable(); !out.Zero() {
		t.Errorf("Disable output = %+v, want zero", out)
	}
	if s.Enabled() {
		t.Error("session still enabled")
	}
	if out := s.Step(rs); !out.Zero() {
		t.Errorf("disabled Step output = %+v, want zero", out)
	}
	if c := s.Stats().Cycles; c != 1 {
		t.Errorf("cycles = %d, disabled steps should not count", c)
	}
}

func TestSession_EnableReinitializes(t *testing.T) {
	s, _ := newTestSession(t, slip.ModeHop)
	s.Step(stateAt(1, 1.3, false))
	if s.State().PeakHeight == 0 {
		t.Fatal("peak height not tracked")
	}

	s.Disable()
	s.Enable()
	if st := s.State(); st.PeakHeight != 0 || st.Phase != slip.PhaseFlight {
		t.Errorf("state after re-enable = %+v", st)
	}
}

func TestSession_ConcurrentStepAndStats(t *testing.T) {
	s, store := newTestSession(t, slip.ModeWalk)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s.Step(stateAt(uint64(i), 1.0, i%50 < 25))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = s.Stats()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			store.Update(func(p *slip.Params) { p.StanceP = float64(200 + i) })
		}
	}()
	wg.Wait()

	if c := s.Stats().Cycles; c != 500 {
		t.Errorf("cycles = %d, want 500", c)
	}
}

func TestSession_HeartbeatLogged(t *testing.T) {
	var buf bytes.Buffer
	store, _ := params.NewStore(slip.DefaultParams())
	s, err := NewSession(slip.ModeHop, store, WithLogger(hlog.New(&buf, "info")))
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= HeartbeatEvery; i++ {
		s.Step(stateAt(uint64(i), 1.0, false))
	}
	if !strings.Contains(buf.String(), "heartbeat") {
		t.Error("expected heartbeat log line")
	}
}

// scriptSource replays states, then reports closed.
type scriptSource struct {
	states []slip.RobotState
	i      int
	err    error
}

func (s *scriptSource) Read() (slip.RobotState, error) {
	if s.err != nil {
		return slip.RobotState{}, s.err
	}
	if s.i >= len(s.states) {
		return slip.RobotState{}, ErrSourceClosed
	}
	rs := s.states[s.i]
	s.i++
	return rs, nil
}

type captureSink struct {
	mu   sync.Mutex
	outs []slip.Output
}

func (c *captureSink) Write(out slip.Output) error {
	c.mu.Lock()
	c.outs = append(c.outs, out)
	c.mu.Unlock()
	return nil
}

func (c *captureSink) last() slip.Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outs[len(c.outs)-1]
}

func TestRunner_RunSteps(t *testing.T) {
	s, _ := newTestSession(t, slip.ModeHop)
	src := &scriptSource{}
	for i := 0; i < 10; i++ {
		src.states = append(src.states, stateAt(uint64(i), 1.0, false))
	}
	sink := &captureSink{}

	r := NewRunner(s, src, sink, time.Millisecond)
	if err := r.RunSteps(20); err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
	if r.Ticks() != 10 {
		t.Errorf("ticks = %d, want 10", r.Ticks())
	}
	if len(sink.outs) != 10 {
		t.Errorf("sink got %d outputs, want 10", len(sink.outs))
	}
}

func TestRunner_SourceError(t *testing.T) {
	s, _ := newTestSession(t, slip.ModeHop)
	readErr := errors.New("bus timeout")
	r := NewRunner(s, &scriptSource{err: readErr}, &captureSink{}, time.Millisecond)

	if err := r.RunSteps(3); !errors.Is(err, readErr) {
		t.Errorf("error = %v, want %v", err, readErr)
	}
	if r.Errors() != 1 {
		t.Errorf("errors = %d, want 1", r.Errors())
	}
}

func TestRunner_CancelWritesShutdown(t *testing.T) {
	s, _ := newTestSession(t, slip.ModeHop)
	src := &scriptSource{}
	for i := 0; i < 100000; i++ {
		src.states = append(src.states, stateAt(uint64(i), 1.0, false))
	}
	sink := &captureSink{}
	r := NewRunner(s, src, sink, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := r.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run error = %v, want deadline exceeded", err)
	}
	if !sink.last().Zero() {
		t.Error("last command should be zero torque")
	}
	if s.Enabled() {
		t.Error("session should be disabled after Run returns")
	}
}

func TestRunner_SourceClosedEndsRun(t *testing.T) {
	s, _ := newTestSession(t, slip.ModeHop)
	src := &scriptSource{states: []slip.RobotState{stateAt(1, 1, false)}}
	sink := &captureSink{}
	r := NewRunner(s, src, sink, time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after source closed")
	}
	if !sink.last().Zero() {
		t.Error("last command should be zero torque")
	}
}
