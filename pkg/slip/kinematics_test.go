package slip

import (
	"math"
	"testing"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

// legAt builds an undeflected leg at the given angle and length.
func legAt(angle, length float64) LegState {
	a, b := MotorTargets(angle, length)
	return LegState{
		MotorAngleA: a,
		MotorAngleB: b,
		LegAngleA:   a,
		LegAngleB:   b,
	}
}

func TestMotorTargets_RoundTrip(t *testing.T) {
	tests := []struct {
		angle, length float64
	}{
		{math.Pi / 2, 0.9},
		{math.Pi/2 - 0.3, 0.6},
		{math.Pi/2 + 0.2, 0.97},
		{1.0, 0.51},
	}

	for _, tt := range tests {
		a, b := MotorTargets(tt.angle, tt.length)
		if got := LegLength(a, b); !floatEquals(got, tt.length) {
			t.Errorf("LegLength(%v, %v) = %v, want %v", a, b, got, tt.length)
		}
		if got := LegAngle(a, b); !floatEquals(got, tt.angle) {
			t.Errorf("LegAngle(%v, %v) = %v, want %v", a, b, got, tt.angle)
		}
	}
}

func TestLegLengthRate_MatchesFiniteDifference(t *testing.T) {
	a, b := MotorTargets(math.Pi/2, 0.8)
	va, vb := -0.7, 0.4
	const dt = 1e-6

	numeric := (LegLength(a+va*dt, b+vb*dt) - LegLength(a, b)) / dt
	analytic := LegLengthRate(a, b, va, vb)

	if math.Abs(numeric-analytic) > 1e-5 {
		t.Errorf("LegLengthRate = %v, finite difference %v", analytic, numeric)
	}
}

func TestZeroForceLength_IgnoresDeflection(t *testing.T) {
	leg := legAt(math.Pi/2, 0.85)
	// Compress the springs: segments close up relative to the motors.
	leg.LegAngleA += 0.05
	leg.LegAngleB -= 0.05

	r0, rate := ZeroForceLength(leg)
	if !floatEquals(r0, 0.85) {
		t.Errorf("zero-force length = %v, want 0.85", r0)
	}
	if rate != 0 {
		t.Errorf("zero-force rate = %v, want 0 with motors at rest", rate)
	}
	if SpringLength(leg) >= r0 {
		t.Errorf("spring length %v should be shorter than %v when compressed", SpringLength(leg), r0)
	}
}
