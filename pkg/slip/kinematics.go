package slip

import "math"

// The leg is a four-bar with two motor-driven segments A and B. Leg angle is
// the mean of the segment angles (π/2 = vertical) and leg length, normalised
// to the segment length, is cos((2π + A − B)/2).

// LegLength returns the normalised length for segment angles a and b.
func LegLength(a, b float64) float64 {
	return math.Cos((2*math.Pi + a - b) / 2)
}

// LegAngle returns the leg angle for segment angles a and b.
func LegAngle(a, b float64) float64 {
	return (a + b) / 2
}

// LegLengthRate returns d/dt LegLength for segment velocities va and vb.
func LegLengthRate(a, b, va, vb float64) float64 {
	return -math.Sin((2*math.Pi+a-b)/2) * (va - vb) / 2
}

// ZeroForceLength is the leg length implied by the motor positions alone,
// ignoring spring deflection, with its rate of change.
func ZeroForceLength(leg LegState) (length, rate float64) {
	length = LegLength(leg.MotorAngleA, leg.MotorAngleB)
	rate = LegLengthRate(leg.MotorAngleA, leg.MotorAngleB, leg.MotorVelA, leg.MotorVelB)
	return length, rate
}

// SpringLength is the actual leg length measured after the series springs.
func SpringLength(leg LegState) float64 {
	return LegLength(leg.LegAngleA, leg.LegAngleB)
}

// MotorTargets converts a leg angle and normalised length to the motor
// angles that realise them. length must lie in [-1, 1].
func MotorTargets(angle, length float64) (a, b float64) {
	offset := math.Acos(length)
	return angle - math.Pi + offset, angle + math.Pi - offset
}
