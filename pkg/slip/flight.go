package slip

import "math"

// DesiredLegAngle is the touchdown leg angle: vertical, tilted against the
// horizontal velocity and toward the desired velocity.
func DesiredLegAngle(xVel float64, p Params) float64 {
	return math.Pi/2 - p.LegAngleGain*xVel + p.XVelGain*p.DesiredXVel
}

// FlightTargets returns the touchdown leg angle and length inside their
// bounds. A NaN velocity yields a vertical leg.
func FlightTargets(xVel float64, p Params) (angle, length float64) {
	var lim limiter
	return flightTargets(xVel, p, &lim)
}

func flightTargets(xVel float64, p Params, lim *limiter) (angle, length float64) {
	angle = lim.bound(DesiredLegAngle(xVel, p), p.MinLegAngle, p.MaxLegAngle, math.Pi/2)
	length = lim.bound(p.PreferredLegLength, p.MinLegLength, p.MaxLegLength, p.PreferredLegLength)
	return angle, length
}

// GainFactor ramps the flight gain from 0 to 1 as the larger motor error
// grows to threshold. It stops a setpoint jump at liftoff from commanding a
// full-gain torque step.
func GainFactor(errA, errB, threshold float64) float64 {
	return clamp(math.Max(math.Abs(errA), math.Abs(errB))/threshold, 0, 1)
}

// flightLaw positions a leg for the next touchdown.
func flightLaw(leg LegState, body BodyState, p Params, lim *limiter, sl *Slew) LegTorque {
	sl.prime(leg, p)
	angle, length := flightTargets(body.XVel, p, lim)
	angle = sl.legAngle(angle, p)
	length = sl.legLength(length, p)

	desA, desB := MotorTargets(angle, length)
	errA := desA - leg.MotorAngleA
	errB := desB - leg.MotorAngleB

	gcf := GainFactor(errA, errB, p.GainRampThreshold)

	return LegTorque{
		TorqueA: gcf*p.FlightP*errA - p.FlightD*leg.MotorVelA,
		TorqueB: gcf*p.FlightP*errB - p.FlightD*leg.MotorVelB,
	}
}
