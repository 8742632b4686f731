package sim

import (
	"context"
	"errors"
	"time"

	"github.com/teslashibe/go-hopper/pkg/host"
	"github.com/teslashibe/go-hopper/pkg/params"
	"github.com/teslashibe/go-hopper/pkg/slip"
)

// Result is the outcome of a simulated run.
type Result struct {
	Summary Summary
	Records []slip.Record
	Trace   *Trace
}

// Run simulates steps control cycles of a local controller against a new
// plant. A fall ends the run early and is reported in the summary, not as an
// error.
func Run(mode slip.Mode, store *params.Store, cfg Config, steps int, opts ...host.Option) (Result, error) {
	rec := &Recorder{}
	opts = append(opts, host.WithPublisher(rec))
	session, err := host.NewSession(mode, store, opts...)
	if err != nil {
		return Result{}, err
	}

	plant := NewPlant(cfg)
	runner := host.NewRunner(session, plant, plant, time.Duration(cfg.Dt*float64(time.Second)))
	if err := runner.RunSteps(steps); err != nil && !errors.Is(err, ErrFallen) {
		return Result{}, err
	}
	session.Disable()

	records := rec.Records()
	return Result{
		Summary: Summarize(plant.Trace(), records, plant.Fallen()),
		Records: records,
		Trace:   plant.Trace(),
	}, nil
}

// Stepper computes the command for one state, e.g. a remote controller.
type Stepper interface {
	Step(ctx context.Context, rs slip.RobotState) (slip.Output, error)
}

// RunRemote simulates steps cycles against a controller reached through s.
// The plant only advances when a command arrives, so the run is lockstep
// regardless of network latency.
func RunRemote(ctx context.Context, s Stepper, cfg Config, steps int) (Result, error) {
	plant := NewPlant(cfg)
	rec := &Recorder{}

	for i := 0; i < steps; i++ {
		rs, err := plant.Read()
		if err != nil {
			break
		}
		out, err := s.Step(ctx, rs)
		if err != nil {
			return Result{Summary: Summarize(plant.Trace(), rec.Records(), plant.Fallen()), Trace: plant.Trace()}, err
		}
		rec.Publish(slip.Record{Time: rs.Time, Event: out.Event, Torques: out.Legs, Saturated: out.Saturated,
			DesiredLegLength: out.DesiredLegLength})
		if err := plant.Write(out); err != nil {
			break
		}
	}

	records := rec.Records()
	return Result{
		Summary: Summarize(plant.Trace(), records, plant.Fallen()),
		Records: records,
		Trace:   plant.Trace(),
	}, nil
}
