// Package slip implements a Spring-Loaded Inverted Pendulum (SLIP) hopping and
// walking controller for a robot with two-motor differential legs.
//
// The controller is a pure function of (State, RobotState, Params). A host
// calls Initialize once, Step once per control tick and Shutdown on
// deactivation. Nothing in this package blocks, allocates per cycle or
// performs I/O.
package slip

// Leg indices into RobotState.Legs and Output.Legs.
const (
	Left  = 0
	Right = 1
)

// NumLegs is the number of legs carried in every state and output record.
const NumLegs = 2

// BodyState is the sensed torso state.
type BodyState struct {
	X        float64 `json:"x"`         // Horizontal position (m)
	Z        float64 `json:"z"`         // Height (m)
	XVel     float64 `json:"x_vel"`     // Horizontal velocity (m/s)
	ZVel     float64 `json:"z_vel"`     // Vertical velocity (m/s)
	Angle    float64 `json:"angle"`     // Torso pitch (rad)
	AngleVel float64 `json:"angle_vel"` // Torso pitch rate (rad/s)
}

// LegState is the sensed state of one leg.
//
// Motor angles are measured on the motor side of the series springs, leg
// angles on the segment side. With no spring deflection they coincide.
type LegState struct {
	MotorAngleA float64 `json:"motor_angle_a"`
	MotorAngleB float64 `json:"motor_angle_b"`
	MotorVelA   float64 `json:"motor_vel_a"`
	MotorVelB   float64 `json:"motor_vel_b"`
	LegAngleA   float64 `json:"leg_angle_a"`
	LegAngleB   float64 `json:"leg_angle_b"`
	LegVelA     float64 `json:"leg_vel_a"`
	LegVelB     float64 `json:"leg_vel_b"`
	HipAngle    float64 `json:"hip_angle"`
	HipVel      float64 `json:"hip_vel"`

	ToeSwitch bool    `json:"toe_switch"`          // Binary toe contact switch
	ToeForce  float64 `json:"toe_force,omitempty"` // Analog toe reading, 0 if unavailable
}

// RobotState is one cycle's sensor snapshot. It is owned by the caller and
// treated as read-only.
type RobotState struct {
	Time uint64            `json:"time"` // Monotonic cycle time
	Body BodyState         `json:"body"`
	Legs [NumLegs]LegState `json:"legs"`
}

// LegTorque is the command for one leg's three motors (N·m).
type LegTorque struct {
	TorqueA   float64 `json:"torque_a"`
	TorqueB   float64 `json:"torque_b"`
	TorqueHip float64 `json:"torque_hip"`
}

// Output is the actuator command for one cycle. It has no identity beyond
// the cycle that produced it.
type Output struct {
	Legs [NumLegs]LegTorque `json:"legs"`

	// Event is the phase transition fired during this cycle, if any.
	Event Event `json:"event"`

	// DesiredLegLength is the stance length target, 0 outside stance.
	DesiredLegLength float64 `json:"desired_leg_length,omitempty"`

	// Saturated counts the targets and torques the safety layer clamped.
	Saturated int `json:"saturated"`
}

// Zero reports whether every torque in the output is zero.
func (o Output) Zero() bool {
	for _, l := range o.Legs {
		if l.TorqueA != 0 || l.TorqueB != 0 || l.TorqueHip != 0 {
			return false
		}
	}
	return true
}

// Event identifies a phase transition.
type Event int

const (
	EventNone Event = iota
	EventTouchdown
	EventLiftoff
	EventDoubleSupport // Swing leg touched down
	EventSingleSupport // Trailing leg lifted off, roles swapped
)

// String returns the event name used in logs and telemetry.
func (e Event) String() string {
	switch e {
	case EventTouchdown:
		return "touchdown"
	case EventLiftoff:
		return "liftoff"
	case EventDoubleSupport:
		return "double_support"
	case EventSingleSupport:
		return "single_support"
	default:
		return "none"
	}
}

// MarshalText encodes the event by name.
func (e Event) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText decodes an event name.
func (e *Event) UnmarshalText(b []byte) error {
	switch string(b) {
	case "touchdown":
		*e = EventTouchdown
	case "liftoff":
		*e = EventLiftoff
	case "double_support":
		*e = EventDoubleSupport
	case "single_support":
		*e = EventSingleSupport
	default:
		*e = EventNone
	}
	return nil
}
