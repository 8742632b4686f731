package slip

import "math"

// Mechanical limits and calibration of the hopper leg.
const (
	// DefaultMinLegLength and DefaultMaxLegLength keep the leg off its hard
	// stops. Lengths are normalised to the segment length.
	DefaultMinLegLength = 0.51
	DefaultMaxLegLength = 0.97

	// DefaultMinLegAngle and DefaultMaxLegAngle bound the flight leg angle
	// to ±0.5 rad around vertical (π/2).
	DefaultMinLegAngle = math.Pi/2 - 0.5
	DefaultMaxLegAngle = math.Pi/2 + 0.5

	// DefaultMinHipAngle and DefaultMaxHipAngle prevent hip hyperextension.
	DefaultMinHipAngle = -0.2007
	DefaultMaxHipAngle = 0.148

	// DefaultHipBodyGain and DefaultHipOffset map torso pitch to the hip
	// angle that keeps the leg in the boom plane.
	DefaultHipBodyGain = 0.99366
	DefaultHipOffset   = 0.03705

	// DefaultMaxTorque is the motor torque clamp (N·m).
	DefaultMaxTorque = 10.0

	// DefaultGainRampThreshold is the motor error at which the flight
	// gain reaches 1 (rad).
	DefaultGainRampThreshold = 0.05

	// DefaultGearRatio is the harmonic drive reduction between motor and
	// spring.
	DefaultGearRatio = 20.0

	// DefaultControlPeriod is the control tick (s).
	DefaultControlPeriod = 0.001
)

// clamp restricts v to the range [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Degrees converts radians to degrees for logging/display.
func Degrees(radians float64) float64 {
	return radians * 180.0 / math.Pi
}
