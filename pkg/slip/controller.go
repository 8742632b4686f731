package slip

import "fmt"

// Controller is the lifecycle a host drives: Initialize once on activation,
// Step once per control tick, Shutdown on deactivation.
type Controller interface {
	Initialize(p Params) State
	Step(s State, rs RobotState, p Params) (Output, State)
	Shutdown(s State) Output
}

// Mode selects a controller variant.
type Mode string

const (
	ModeHop  Mode = "hop"  // Single-leg flight/stance hopping
	ModeWalk Mode = "walk" // Two-leg walking with double support
)

// New returns the controller for a mode.
func New(mode Mode) (Controller, error) {
	switch mode {
	case ModeHop, "":
		return Hopper{}, nil
	case ModeWalk:
		return Walker{}, nil
	default:
		return nil, fmt.Errorf("slip: unknown mode %q", mode)
	}
}

// Ensure both variants implement Controller
var (
	_ Controller = Hopper{}
	_ Controller = Walker{}
)

// initialState is shared by both variants: flight, no apex yet.
func initialState() State {
	return State{
		Phase:      PhaseFlight,
		StanceLeg:  Left,
		PeakHeight: 0,
	}
}

// shutdownOutput is the zero-torque command. There is no ramp-down.
func shutdownOutput() Output {
	return Output{}
}

// Hopper is the two-phase hopping controller for the left leg.
type Hopper struct{}

// Initialize returns the state for a freshly activated hopper.
func (Hopper) Initialize(p Params) State {
	return initialState()
}

// Shutdown returns zero torque on every motor.
func (Hopper) Shutdown(s State) Output {
	return shutdownOutput()
}

// Step runs one control cycle. The law of the current phase runs first; the
// phase machine then consumes the debounced contact, so a transition changes
// the law from the next cycle on.
func (Hopper) Step(s State, rs RobotState, p Params) (Output, State) {
	var (
		out Output
		lim limiter
	)
	s.Time = rs.Time
	leg := rs.Legs[Left]

	var contact bool
	contact, s.Contact[Left] = Estimate(RawContact(leg, p), s.Contact[Left], p)

	switch s.Phase {
	case PhaseStance:
		s.latchMidStance(SpringLength(leg))
		out.Legs[Left], out.DesiredLegLength = stanceLaw(leg, s.AfterMidStance, s.PeakHeight, p, &lim, &s.Slew[Left])
	default:
		out.Legs[Left] = flightLaw(leg, rs.Body, p, &lim, &s.Slew[Left])
		s.updatePeak(rs.Body.Z)
	}
	out.Event = s.hopTransition(contact)

	out.Legs[Left].TorqueHip = hipLaw(leg, rs.Body, p, &lim, &s.Slew[Left])

	s.LastLegLength = SpringLength(leg)
	lim.apply(&out, p)
	return out, s
}

// Walker is the bipedal SLIP walking controller.
type Walker struct{}

// Initialize returns the state for a freshly activated walker.
func (Walker) Initialize(p Params) State {
	return initialState()
}

// Shutdown returns zero torque on every motor.
func (Walker) Shutdown(s State) Output {
	return shutdownOutput()
}

// Step runs one walking cycle. In single support the stance leg runs the
// stance law and the swing leg the flight law; in double support both legs
// hold the preferred length; in flight both legs prepare for touchdown.
func (Walker) Step(s State, rs RobotState, p Params) (Output, State) {
	var (
		out      Output
		lim      limiter
		contact  [NumLegs]bool
		legAngle [NumLegs]float64
	)
	s.Time = rs.Time

	for i := range rs.Legs {
		contact[i], s.Contact[i] = Estimate(RawContact(rs.Legs[i], p), s.Contact[i], p)
		legAngle[i] = LegAngle(rs.Legs[i].LegAngleA, rs.Legs[i].LegAngleB)
	}

	switch s.Phase {
	case PhaseSingleSupport:
		st, sw := s.StanceLeg, other(s.StanceLeg)
		s.latchMidStance(SpringLength(rs.Legs[st]))
		out.Legs[st], out.DesiredLegLength = stanceLaw(rs.Legs[st], s.AfterMidStance, s.PeakHeight, p, &lim, &s.Slew[st])
		out.Legs[sw] = flightLaw(rs.Legs[sw], rs.Body, p, &lim, &s.Slew[sw])
		s.updatePeak(rs.Body.Z)

	case PhaseDoubleSupport:
		for i := range rs.Legs {
			out.Legs[i], out.DesiredLegLength = stanceLaw(rs.Legs[i], false, s.PeakHeight, p, &lim, &s.Slew[i])
		}

	default:
		for i := range rs.Legs {
			out.Legs[i] = flightLaw(rs.Legs[i], rs.Body, p, &lim, &s.Slew[i])
		}
		s.updatePeak(rs.Body.Z)
	}
	out.Event = s.walkTransition(contact, legAngle)

	for i := range rs.Legs {
		out.Legs[i].TorqueHip = hipLaw(rs.Legs[i], rs.Body, p, &lim, &s.Slew[i])
	}

	s.LastLegLength = SpringLength(rs.Legs[s.StanceLeg])
	lim.apply(&out, p)
	return out, s
}
