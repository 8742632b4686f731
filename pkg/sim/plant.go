// Package sim is a planar single-leg spring-mass plant for exercising the
// controllers without hardware.
//
// The body is a point mass at the hip. The leg is the four-bar of the
// controller's kinematics with a series spring along its length: the motors
// set the free length r0 = cos(δ) and the leg angle, the spring force is
// k(r0 - r) while the toe is pinned to the ground. Motor positions are
// tracked as common mode θ = (A+B)/2 and differential δ = (2π+A-B)/2.
package sim

import (
	"errors"
	"math"

	"github.com/teslashibe/go-hopper/pkg/host"
	"github.com/teslashibe/go-hopper/pkg/slip"
)

// ErrFallen is returned when the body hits the ground.
var ErrFallen = errors.New("sim: body hit the ground")

// Config holds the plant constants.
type Config struct {
	Dt          float64 // Integration step (s)
	Mass        float64 // Body mass (kg)
	Gravity     float64 // (m/s²)
	Stiffness   float64 // Leg spring (N per unit length)
	MotorJ      float64 // Reflected motor inertia at the output (kg·m²)
	MotorDamp   float64 // Motor viscous damping (N·m·s)
	Gear        float64 // Motor torque multiplier
	MaxSteps    int     // Read reports closed after this many steps; 0 = unlimited
	InitHeight  float64 // Initial hip height (m)
	InitXVel    float64 // Initial forward speed (m/s)
	InitLength  float64 // Initial free leg length
	InitAngle   float64 // Initial leg angle (rad)
	ToeSwitchOn bool    // Report the binary toe switch (otherwise only force)
}

// DefaultConfig returns a 1 kHz plant roughly the size of a small hopper.
func DefaultConfig() Config {
	return Config{
		Dt:          0.001,
		Mass:        10,
		Gravity:     9.81,
		Stiffness:   3000,
		MotorJ:      0.05,
		MotorDamp:   0.5,
		Gear:        20,
		InitHeight:  1.2,
		InitLength:  0.9,
		InitAngle:   math.Pi / 2,
		ToeSwitchOn: true,
	}
}

// Plant integrates the single-leg model. It implements host.Source and
// host.Sink: Read returns the sensed state, Write applies one command and
// advances one step.
type Plant struct {
	cfg Config

	step uint64

	// Body
	x, z, vx, vz float64

	// Motor coordinates
	theta, delta       float64
	thetaVel, deltaVel float64

	// Contact
	stance bool
	toeX   float64
	force  float64

	// Spring-side segment angles from the previous step, for velocities
	prevA, prevB float64

	fallen bool
	trace  Trace
}

// Ensure Plant can drive a host.Runner
var (
	_ host.Source = (*Plant)(nil)
	_ host.Sink   = (*Plant)(nil)
)

// NewPlant creates a plant in flight at the configured initial conditions.
func NewPlant(cfg Config) *Plant {
	p := &Plant{
		cfg:   cfg,
		z:     cfg.InitHeight,
		vx:    cfg.InitXVel,
		theta: cfg.InitAngle,
		delta: math.Acos(clampUnit(cfg.InitLength)),
	}
	p.prevA, p.prevB = p.segmentAngles()
	return p
}

// Read implements host.Source.
func (p *Plant) Read() (slip.RobotState, error) {
	if p.fallen {
		return slip.RobotState{}, ErrFallen
	}
	if p.cfg.MaxSteps > 0 && p.step >= uint64(p.cfg.MaxSteps) {
		return slip.RobotState{}, host.ErrSourceClosed
	}
	return p.State(), nil
}

// Write implements host.Sink.
func (p *Plant) Write(out slip.Output) error {
	if p.fallen {
		return ErrFallen
	}
	p.Step(out)
	if p.fallen {
		return ErrFallen
	}
	return nil
}

// State returns the sensed robot state. The plant only drives the left leg;
// the right leg mirrors it so walking controllers see a sane input.
func (p *Plant) State() slip.RobotState {
	rs := slip.RobotState{Time: p.step}
	rs.Body = slip.BodyState{X: p.x, Z: p.z, XVel: p.vx, ZVel: p.vz}

	a, b := p.segmentAngles()
	ma, mb := p.motorAngles()
	leg := slip.LegState{
		MotorAngleA: ma,
		MotorAngleB: mb,
		MotorVelA:   p.thetaVel + p.deltaVel,
		MotorVelB:   p.thetaVel - p.deltaVel,
		LegAngleA:   a,
		LegAngleB:   b,
		LegVelA:     (a - p.prevA) / p.cfg.Dt,
		LegVelB:     (b - p.prevB) / p.cfg.Dt,
		ToeSwitch:   p.stance && p.cfg.ToeSwitchOn,
		ToeForce:    p.force,
	}
	rs.Legs[slip.Left] = leg
	rs.Legs[slip.Right] = leg
	rs.Legs[slip.Right].ToeSwitch = false
	rs.Legs[slip.Right].ToeForce = 0
	return rs
}

// Step applies out for one Dt using semi-implicit Euler.
func (p *Plant) Step(out slip.Output) {
	c := p.cfg
	tq := out.Legs[slip.Left]
	p.prevA, p.prevB = p.segmentAngles()

	// Torques on common and differential mode
	tauTheta := c.Gear * (tq.TorqueA + tq.TorqueB)
	tauDelta := c.Gear * (tq.TorqueA - tq.TorqueB)

	if p.stance {
		p.stepStance(tauTheta, tauDelta)
	} else {
		p.stepFlight(tauTheta, tauDelta)
	}

	p.step++
	p.trace.add(p, out)
}

func (p *Plant) stepFlight(tauTheta, tauDelta float64) {
	c := p.cfg

	// Massless leg: the body is ballistic, the motors swing freely
	p.vz -= c.Gravity * c.Dt
	p.x += p.vx * c.Dt
	p.z += p.vz * c.Dt

	p.thetaVel += (tauTheta - 2*c.MotorDamp*p.thetaVel) / (2 * c.MotorJ) * c.Dt
	p.deltaVel += (tauDelta - 2*c.MotorDamp*p.deltaVel) / (2 * c.MotorJ) * c.Dt
	p.theta += p.thetaVel * c.Dt
	p.delta += p.deltaVel * c.Dt
	p.force = 0

	// Touchdown when the toe reaches the ground moving down
	r0 := math.Cos(p.delta)
	if p.vz < 0 && p.z-r0*math.Sin(p.theta) <= 0 {
		p.stance = true
		p.toeX = p.x + r0*math.Cos(p.theta)
		p.force = 0
	}
	p.checkFallen()
}

func (p *Plant) stepStance(tauTheta, tauDelta float64) {
	c := p.cfg

	r, angle := p.legGeometry()
	r0 := math.Cos(p.delta)
	fs := c.Stiffness * (r0 - r)

	// Liftoff when the spring unloads
	if fs <= 0 {
		p.stance = false
		p.force = 0
		p.stepFlight(tauTheta, tauDelta)
		return
	}
	p.force = fs

	// Spring pushes the body away from the toe
	ax := -fs * math.Cos(angle) / c.Mass
	az := fs*math.Sin(angle)/c.Mass - c.Gravity
	p.vx += ax * c.Dt
	p.vz += az * c.Dt
	p.x += p.vx * c.Dt
	p.z += p.vz * c.Dt

	// Spring load back-drives the differential mode
	p.deltaVel += (tauDelta - 2*c.MotorDamp*p.deltaVel + fs*math.Sin(p.delta)) / (2 * c.MotorJ) * c.Dt
	p.delta += p.deltaVel * c.Dt

	// The common mode is carried by the pinned toe
	_, next := p.legGeometry()
	p.thetaVel = (next - p.theta) / c.Dt
	p.theta = next

	p.checkFallen()
}

func (p *Plant) checkFallen() {
	if p.z <= 0 {
		p.fallen = true
	}
}

// legGeometry returns the hip-to-toe distance and leg angle while pinned.
func (p *Plant) legGeometry() (r, angle float64) {
	dx := p.toeX - p.x
	return math.Hypot(dx, p.z), math.Atan2(p.z, dx)
}

// motorAngles maps the motor coordinates to motor A and B angles.
func (p *Plant) motorAngles() (a, b float64) {
	return p.theta - math.Pi + p.delta, p.theta + math.Pi - p.delta
}

// segmentAngles returns the spring-side segment angles.
func (p *Plant) segmentAngles() (a, b float64) {
	if !p.stance {
		return p.motorAngles()
	}
	r, angle := p.legGeometry()
	return slip.MotorTargets(angle, clampUnit(r))
}

// Stance reports whether the toe is pinned.
func (p *Plant) Stance() bool {
	return p.stance
}

// Fallen reports whether the body hit the ground.
func (p *Plant) Fallen() bool {
	return p.fallen
}

// Steps returns the number of integrated steps.
func (p *Plant) Steps() uint64 {
	return p.step
}

// Trace returns the recorded trajectory.
func (p *Plant) Trace() *Trace {
	return &p.trace
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
