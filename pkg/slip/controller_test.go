package slip

import (
	"math"
	"math/rand"
	"testing"
)

// hopState returns a robot state with the hopping leg at the preferred pose.
func hopState(time uint64, z float64, contact bool) RobotState {
	p := DefaultParams()
	rs := RobotState{Time: time}
	rs.Body.Z = z
	rs.Legs[Left] = legAt(math.Pi/2, p.PreferredLegLength)
	rs.Legs[Right] = legAt(math.Pi/2, p.PreferredLegLength)
	rs.Legs[Left].ToeSwitch = contact
	return rs
}

func TestInitialize(t *testing.T) {
	for _, mode := range []Mode{ModeHop, ModeWalk} {
		c, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		s := c.Initialize(DefaultParams())
		if s.Phase != PhaseFlight {
			t.Errorf("%s: initial phase = %v, want flight", mode, s.Phase)
		}
		if s.PeakHeight != 0 {
			t.Errorf("%s: initial peak = %v, want 0", mode, s.PeakHeight)
		}
		if s.AfterMidStance {
			t.Errorf("%s: AfterMidStance should start false", mode)
		}
	}
}

func TestNew_UnknownMode(t *testing.T) {
	if _, err := New("gallop"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestHopper_TouchdownEntersStance(t *testing.T) {
	p := DefaultParams()
	h := Hopper{}
	s := h.Initialize(p)

	_, s = h.Step(s, hopState(10, 1.0, false), p)
	out, s := h.Step(s, hopState(11, 0.95, true), p)

	if s.Phase != PhaseStance {
		t.Errorf("phase = %v, want stance", s.Phase)
	}
	if s.TimeOfLastStance != 11 {
		t.Errorf("TimeOfLastStance = %d, want 11", s.TimeOfLastStance)
	}
	if out.Event != EventTouchdown {
		t.Errorf("event = %v, want touchdown", out.Event)
	}
}

func TestHopper_LiftoffResets(t *testing.T) {
	p := DefaultParams()
	h := Hopper{}
	s := h.Initialize(p)

	_, s = h.Step(s, hopState(1, 0.95, true), p)
	if s.Phase != PhaseStance {
		t.Fatalf("setup: phase = %v, want stance", s.Phase)
	}
	s.PeakHeight = 1.05
	s.AfterMidStance = true

	out, s := h.Step(s, hopState(2, 0.97, false), p)

	if s.Phase != PhaseFlight {
		t.Errorf("phase = %v, want flight", s.Phase)
	}
	if s.PeakHeight != 0 {
		t.Errorf("PeakHeight = %v, want 0", s.PeakHeight)
	}
	if s.AfterMidStance {
		t.Error("AfterMidStance should reset on liftoff")
	}
	if out.Event != EventLiftoff {
		t.Errorf("event = %v, want liftoff", out.Event)
	}
}

func TestHopper_PeakHeightInFlight(t *testing.T) {
	p := DefaultParams()
	h := Hopper{}
	s := h.Initialize(p)

	heights := []float64{0.9, 1.1, 1.0}
	want := []float64{0.9, 1.1, 1.1}

	for i, z := range heights {
		_, s = h.Step(s, hopState(uint64(i), z, false), p)
		if s.PeakHeight != want[i] {
			t.Errorf("cycle %d: PeakHeight = %v, want %v", i, s.PeakHeight, want[i])
		}
	}
}

func TestHopper_LegExtensionScenario(t *testing.T) {
	p := DefaultParams()
	p.DesiredHopHeight = 1.0
	p.HopHeightGain = 2.0
	p.PreferredLegLength = 0.85
	p.MinLegLength = 0.51
	p.MaxLegLength = 0.97

	ext := LegExtension(true, 0.95, p)
	if math.Abs(ext-0.10) > 1e-9 {
		t.Errorf("LegExtension = %v, want 0.10", ext)
	}
	if got := DesiredLegLength(ext, p); math.Abs(got-0.95) > 1e-9 {
		t.Errorf("DesiredLegLength = %v, want 0.95", got)
	}

	// Same numbers through a full stance cycle.
	h := Hopper{}
	s := h.Initialize(p)
	_, s = h.Step(s, hopState(1, 0.9, true), p)
	s.AfterMidStance = true
	s.PeakHeight = 0.95

	out, s := h.Step(s, hopState(2, 0.9, true), p)
	if s.Phase != PhaseStance {
		t.Fatalf("phase = %v, want stance", s.Phase)
	}
	if math.Abs(out.DesiredLegLength-0.95) > 1e-9 {
		t.Errorf("stance desired length = %v, want 0.95", out.DesiredLegLength)
	}
}

func TestLegExtension_BeforeMidStance(t *testing.T) {
	p := DefaultParams()
	if ext := LegExtension(false, 0.2, p); ext != 0 {
		t.Errorf("LegExtension before mid-stance = %v, want 0", ext)
	}
}

func TestDesiredLegLength_Clamped(t *testing.T) {
	p := DefaultParams()
	if got := DesiredLegLength(5, p); got != p.MaxLegLength {
		t.Errorf("DesiredLegLength(+5) = %v, want %v", got, p.MaxLegLength)
	}
	if got := DesiredLegLength(-5, p); got != p.MinLegLength {
		t.Errorf("DesiredLegLength(-5) = %v, want %v", got, p.MinLegLength)
	}
}

func TestStanceForce_SteadyHover(t *testing.T) {
	p := DefaultParams()
	p.SpringStiffness = 4000 // Correction term must vanish without deflection too
	leg := legAt(math.Pi/2, p.PreferredLegLength)

	if f := StanceForce(leg, p.PreferredLegLength, p); math.Abs(f) > 1e-9 {
		t.Errorf("hover force = %v, want 0", f)
	}
}

func TestStanceTorques_OpposedPair(t *testing.T) {
	p := DefaultParams()
	var lim limiter
	leg := legAt(math.Pi/2, 0.7) // Shorter than preferred: extend

	torque, _ := stanceLaw(leg, false, 0, p, &lim, &Slew{})
	if torque.TorqueB <= 0 {
		t.Errorf("TorqueB = %v, want positive to extend", torque.TorqueB)
	}
	if torque.TorqueA != -torque.TorqueB {
		t.Errorf("torques not opposed: A=%v B=%v", torque.TorqueA, torque.TorqueB)
	}
}

func TestHopper_AfterMidStanceMonotonic(t *testing.T) {
	p := DefaultParams()
	h := Hopper{}
	s := h.Initialize(p)

	// Touchdown, compress, re-extend, compress again: the latch must hold.
	lengths := []float64{0.9, 0.85, 0.8, 0.82, 0.86, 0.84, 0.83}
	latched := false
	for i, l := range lengths {
		rs := hopState(uint64(i), 0.9, true)
		rs.Legs[Left].LegAngleA, rs.Legs[Left].LegAngleB = MotorTargets(math.Pi/2, l)
		_, s = h.Step(s, rs, p)

		if latched && !s.AfterMidStance {
			t.Fatalf("cycle %d: AfterMidStance cleared during stance", i)
		}
		latched = s.AfterMidStance
	}
	if !latched {
		t.Error("AfterMidStance never latched after the leg re-extended")
	}
}

func TestHopper_LatchWaitsForExtension(t *testing.T) {
	p := DefaultParams()
	h := Hopper{}
	s := h.Initialize(p)

	for i, l := range []float64{0.9, 0.88, 0.85, 0.8} {
		rs := hopState(uint64(i), 0.9, true)
		rs.Legs[Left].LegAngleA, rs.Legs[Left].LegAngleB = MotorTargets(math.Pi/2, l)
		_, s = h.Step(s, rs, p)
		if s.AfterMidStance {
			t.Fatalf("cycle %d: latched while the leg was still compressing", i)
		}
	}
}

func TestHopper_Shutdown(t *testing.T) {
	h := Hopper{}
	p := DefaultParams()
	s := h.Initialize(p)
	out, s := h.Step(s, hopState(1, 0.5, true), p)
	if out.Zero() {
		t.Fatal("setup: expected a non-zero command before shutdown")
	}

	if !h.Shutdown(s).Zero() {
		t.Error("Shutdown must command zero torque")
	}
	if !(Walker{}).Shutdown(s).Zero() {
		t.Error("Walker Shutdown must command zero torque")
	}
}

func randomState(r *rand.Rand) RobotState {
	u := func(scale float64) float64 { return (r.Float64()*2 - 1) * scale }
	rs := RobotState{Time: uint64(r.Intn(1 << 20))}
	rs.Body = BodyState{X: u(5), Z: u(2), XVel: u(20), ZVel: u(20), Angle: u(3), AngleVel: u(50)}
	for i := range rs.Legs {
		rs.Legs[i] = LegState{
			MotorAngleA: u(10), MotorAngleB: u(10),
			MotorVelA: u(200), MotorVelB: u(200),
			LegAngleA: u(10), LegAngleB: u(10),
			HipAngle: u(2), HipVel: u(100),
			ToeSwitch: r.Intn(2) == 0,
		}
	}
	return rs
}

func TestStep_ClampInvariant(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	p := DefaultParams()
	p.StanceP, p.FlightP, p.HipP = 1e5, 1e5, 1e5
	p.DesiredXVel = 50 // Drives the leg angle target out of range
	p.LegRateLimit, p.HipRateLimit, p.SpringRateLimit = 20, 20, 5

	for _, c := range []Controller{Hopper{}, Walker{}} {
		s := c.Initialize(p)
		for i := 0; i < 5000; i++ {
			var out Output
			out, s = c.Step(s, randomState(r), p)

			for leg, tq := range out.Legs {
				for _, v := range []float64{tq.TorqueA, tq.TorqueB, tq.TorqueHip} {
					if math.IsNaN(v) || math.Abs(v) > p.MaxTorque {
						t.Fatalf("%T cycle %d leg %d: torque %v outside ±%v", c, i, leg, v, p.MaxTorque)
					}
				}
			}
			if out.DesiredLegLength != 0 &&
				(out.DesiredLegLength < p.MinLegLength || out.DesiredLegLength > p.MaxLegLength) {
				t.Fatalf("%T cycle %d: desired length %v outside bounds", c, i, out.DesiredLegLength)
			}
			for leg, sl := range s.Slew {
				if !sl.Primed {
					continue
				}
				if sl.LegAngle < p.MinLegAngle || sl.LegAngle > p.MaxLegAngle ||
					sl.LegLength < p.MinLegLength || sl.LegLength > p.MaxLegLength ||
					sl.HipAngle < p.MinHipAngle || sl.HipAngle > p.MaxHipAngle {
					t.Fatalf("%T cycle %d leg %d: target outside bounds: %+v", c, i, leg, sl)
				}
			}
			for leg := range s.Contact {
				if s.Contact[leg].Len() > ContactHistoryCap {
					t.Fatalf("contact history over capacity")
				}
			}
		}
	}
}

func TestStep_NaNInputGivesZeroTorque(t *testing.T) {
	p := DefaultParams()
	h := Hopper{}
	s := h.Initialize(p)

	rs := hopState(1, 1.0, false)
	rs.Legs[Left].MotorAngleA = math.NaN()

	out, _ := h.Step(s, rs, p)
	if out.Legs[Left].TorqueA != 0 {
		t.Errorf("TorqueA = %v, want 0 for NaN input", out.Legs[Left].TorqueA)
	}
	if out.Saturated == 0 {
		t.Error("NaN torque should be counted as saturated")
	}
}

func TestStep_Deterministic(t *testing.T) {
	p := DefaultParams()
	p.ContactDebounce = 3

	run := func(c Controller) ([]Output, State) {
		r := rand.New(rand.NewSource(7))
		s := c.Initialize(p)
		outs := make([]Output, 0, 500)
		for i := 0; i < 500; i++ {
			var out Output
			out, s = c.Step(s, randomState(r), p)
			outs = append(outs, out)
		}
		return outs, s
	}

	for _, c := range []Controller{Hopper{}, Walker{}} {
		o1, s1 := run(c)
		o2, s2 := run(c)
		if s1 != s2 {
			t.Errorf("%T: final states differ", c)
		}
		for i := range o1 {
			if o1[i] != o2[i] {
				t.Fatalf("%T: outputs differ at cycle %d", c, i)
			}
		}
	}
}

func TestFlight_GainRamp(t *testing.T) {
	if got := GainFactor(0, 0, 0.05); got != 0 {
		t.Errorf("GainFactor at zero error = %v, want 0", got)
	}
	if got := GainFactor(0.025, -0.01, 0.05); !floatEquals(got, 0.5) {
		t.Errorf("GainFactor half way = %v, want 0.5", got)
	}
	if got := GainFactor(-1, 0.2, 0.05); got != 1 {
		t.Errorf("GainFactor saturated = %v, want 1", got)
	}
}

func TestFlight_LegAngleAgainstVelocity(t *testing.T) {
	p := DefaultParams()
	if got := DesiredLegAngle(0, p); !floatEquals(got, math.Pi/2) {
		t.Errorf("DesiredLegAngle(0) = %v, want π/2", got)
	}
	if got := DesiredLegAngle(1, p); got >= math.Pi/2 {
		t.Errorf("DesiredLegAngle(+1) = %v, want forward of vertical", got)
	}
}

func TestFlight_AtTargetNoTorque(t *testing.T) {
	p := DefaultParams()
	var lim limiter
	leg := legAt(math.Pi/2, p.PreferredLegLength)

	tq := flightLaw(leg, BodyState{}, p, &lim, &Slew{})
	if math.Abs(tq.TorqueA) > 1e-9 || math.Abs(tq.TorqueB) > 1e-9 {
		t.Errorf("torque at target = (%v, %v), want 0", tq.TorqueA, tq.TorqueB)
	}
}

func TestHip_Clamped(t *testing.T) {
	p := DefaultParams()
	if got := DesiredHipAngle(1.0, p); got != p.MaxHipAngle {
		t.Errorf("DesiredHipAngle(1.0) = %v, want %v", got, p.MaxHipAngle)
	}
	if got := DesiredHipAngle(-1.0, p); got != p.MinHipAngle {
		t.Errorf("DesiredHipAngle(-1.0) = %v, want %v", got, p.MinHipAngle)
	}
	want := p.HipBodyGain*0.05 + p.HipOffset
	if got := DesiredHipAngle(0.05, p); !floatEquals(got, want) {
		t.Errorf("DesiredHipAngle(0.05) = %v, want %v", got, want)
	}
}

func TestHip_RunsInEveryPhase(t *testing.T) {
	p := DefaultParams()
	h := Hopper{}

	for _, contact := range []bool{false, true} {
		s := h.Initialize(p)
		rs := hopState(1, 1.0, contact)
		rs.Legs[Left].HipAngle = 0.1
		out, _ := h.Step(s, rs, p)
		want := p.HipP * (DesiredHipAngle(0, p) - 0.1)
		if !floatEquals(out.Legs[Left].TorqueHip, want) {
			t.Errorf("contact=%v: hip torque = %v, want %v", contact, out.Legs[Left].TorqueHip, want)
		}
	}
}
