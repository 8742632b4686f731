package slip

import "math"

// limiter clamps targets and torques and counts every value it had to move.
type limiter struct {
	saturated int
}

// bounded restricts v to [lo, hi]. NaN maps to nominal, itself restricted to
// the range; infinities clamp to the nearer bound.
func bounded(v, lo, hi, nominal float64) float64 {
	if math.IsNaN(v) {
		return clamp(nominal, lo, hi)
	}
	return clamp(v, lo, hi)
}

// bound clamps a target to [lo, hi], replacing NaN with nominal.
func (l *limiter) bound(v, lo, hi, nominal float64) float64 {
	c := bounded(v, lo, hi, nominal)
	if c != v {
		l.saturated++
	}
	return c
}

// torque clamps a torque to ±max. A NaN torque becomes 0.
func (l *limiter) torque(v, max float64) float64 {
	return l.bound(v, -max, max, 0)
}

// apply clamps every torque in out and records the saturation count.
func (l *limiter) apply(out *Output, p Params) {
	for i := range out.Legs {
		t := &out.Legs[i]
		t.TorqueA = l.torque(t.TorqueA, p.MaxTorque)
		t.TorqueB = l.torque(t.TorqueB, p.MaxTorque)
		t.TorqueHip = l.torque(t.TorqueHip, p.MaxTorque)
	}
	out.Saturated = l.saturated
}

// Slew holds the last commanded targets of one leg. Targets move toward a
// new setpoint no faster than the configured rate limits.
type Slew struct {
	LegAngle  float64 `json:"leg_angle"`
	LegLength float64 `json:"leg_length"`
	HipAngle  float64 `json:"hip_angle"`
	Primed    bool    `json:"primed"`
}

// prime seeds the targets from the measured pose on first use, restricted
// to the configured bounds.
func (sl *Slew) prime(leg LegState, p Params) {
	if sl.Primed {
		return
	}
	sl.LegAngle = bounded(LegAngle(leg.MotorAngleA, leg.MotorAngleB), p.MinLegAngle, p.MaxLegAngle, math.Pi/2)
	sl.LegLength = bounded(LegLength(leg.MotorAngleA, leg.MotorAngleB), p.MinLegLength, p.MaxLegLength, p.PreferredLegLength)
	sl.HipAngle = bounded(leg.HipAngle, p.MinHipAngle, p.MaxHipAngle, p.HipOffset)
	sl.Primed = true
}

// rateLimit moves last toward target by at most rate*dt. A rate of 0
// disables the limit.
func rateLimit(last, target, rate, dt float64) float64 {
	if rate <= 0 {
		return target
	}
	step := rate * dt
	if math.Abs(target-last) <= step {
		return target
	}
	return last + math.Copysign(step, target-last)
}

// legAngle rate-limits a bounded leg angle target.
func (sl *Slew) legAngle(target float64, p Params) float64 {
	sl.LegAngle = rateLimit(sl.LegAngle, target, p.LegRateLimit, p.ControlPeriod)
	return sl.LegAngle
}

// legLength rate-limits a bounded leg length target.
func (sl *Slew) legLength(target float64, p Params) float64 {
	sl.LegLength = rateLimit(sl.LegLength, target, p.SpringRateLimit, p.ControlPeriod)
	return sl.LegLength
}

// hipAngle rate-limits a bounded hip target.
func (sl *Slew) hipAngle(target float64, p Params) float64 {
	sl.HipAngle = rateLimit(sl.HipAngle, target, p.HipRateLimit, p.ControlPeriod)
	return sl.HipAngle
}
