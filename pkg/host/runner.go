package host

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-hopper/pkg/slip"
)

// ErrSourceClosed is returned by a Source that has no more states.
var ErrSourceClosed = errors.New("host: source closed")

// Source provides the latest robot state, once per cycle.
type Source interface {
	Read() (slip.RobotState, error)
}

// Sink receives the commanded torques.
type Sink interface {
	Write(out slip.Output) error
}

// errorLogInterval limits how often I/O errors are logged.
const errorLogInterval = 5 * time.Second

// Runner steps a Session at a fixed rate between a Source and a Sink.
type Runner struct {
	session *Session
	source  Source
	sink    Sink
	rate    time.Duration

	// Diagnostics
	tickCount     atomic.Uint64
	errorCount    atomic.Uint64
	lastErrorTime time.Time
}

// NewRunner creates a runner ticking at rate. Typical rate is 1ms (1 kHz).
func NewRunner(session *Session, source Source, sink Sink, rate time.Duration) *Runner {
	return &Runner{
		session: session,
		source:  source,
		sink:    sink,
		rate:    rate,
	}
}

// Run starts the control loop. It blocks until ctx is cancelled or the
// source closes, then writes the shutdown command to the sink.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return ctx.Err()
		case <-ticker.C:
			if err := r.tick(); errors.Is(err, ErrSourceClosed) {
				r.shutdown()
				return nil
			}
		}
	}
}

// RunSteps runs n cycles back to back without waiting on the clock. Used by
// offline simulation, where the plant advances exactly one step per cycle.
func (r *Runner) RunSteps(n int) error {
	for i := 0; i < n; i++ {
		if err := r.tick(); err != nil {
			if errors.Is(err, ErrSourceClosed) {
				break
			}
			return err
		}
	}
	return nil
}

// Ticks returns the number of completed cycles.
func (r *Runner) Ticks() uint64 {
	return r.tickCount.Load()
}

// Errors returns the number of source or sink errors.
func (r *Runner) Errors() uint64 {
	return r.errorCount.Load()
}

// tick executes one control cycle: read state, step, write torques.
func (r *Runner) tick() error {
	rs, err := r.source.Read()
	if err != nil {
		if errors.Is(err, ErrSourceClosed) {
			return err
		}
		r.noteError("source read failed", err)
		return err
	}

	out := r.session.Step(rs)
	r.tickCount.Add(1)

	if err := r.sink.Write(out); err != nil {
		r.noteError("sink write failed", err)
		return err
	}
	return nil
}

func (r *Runner) shutdown() {
	if err := r.sink.Write(r.session.Disable()); err != nil {
		r.session.log.Error("shutdown write failed", "error", err)
	}
}

// noteError counts err and logs it at most once per errorLogInterval.
func (r *Runner) noteError(msg string, err error) {
	n := r.errorCount.Add(1)
	if r.lastErrorTime.IsZero() || time.Since(r.lastErrorTime) > errorLogInterval {
		r.session.log.Warn(msg, "error", err, "total_errors", n)
		r.lastErrorTime = time.Now()
	}
}
