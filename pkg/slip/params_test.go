package slip

import (
	"errors"
	"math"
	"testing"
)

func TestDefaultParams_Valid(t *testing.T) {
	p := DefaultParams()
	if err := p.Validate(); err != nil {
		t.Fatalf("DefaultParams invalid: %v", err)
	}

	// Calibration carried over from the hopper hardware
	if p.MinLegLength != 0.51 || p.MaxLegLength != 0.97 {
		t.Errorf("leg length bounds = [%v, %v], want [0.51, 0.97]", p.MinLegLength, p.MaxLegLength)
	}
	if p.MinHipAngle != -0.2007 || p.MaxHipAngle != 0.148 {
		t.Errorf("hip bounds = [%v, %v], want [-0.2007, 0.148]", p.MinHipAngle, p.MaxHipAngle)
	}
	if p.ContactDebounce != 1 {
		t.Errorf("ContactDebounce = %d, want 1 (raw toe switch)", p.ContactDebounce)
	}
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		field  string
	}{
		{"negative gain", func(p *Params) { p.StanceP = -1 }, "stance_p"},
		{"nan gain", func(p *Params) { p.HipD = math.NaN() }, "hip_d"},
		{"zero torque clamp", func(p *Params) { p.MaxTorque = 0 }, "max_torque"},
		{"inverted length bounds", func(p *Params) { p.MinLegLength = 0.9; p.MaxLegLength = 0.6 }, "leg_length"},
		{"length above one", func(p *Params) { p.MaxLegLength = 1.2 }, "leg_length"},
		{"inverted hip bounds", func(p *Params) { p.MinHipAngle = 0.2 }, "hip_angle"},
		{"debounce zero", func(p *Params) { p.ContactDebounce = 0 }, "contact_debounce"},
		{"debounce over cap", func(p *Params) { p.ContactDebounce = ContactHistoryCap + 1 }, "contact_debounce"},
		{"unknown filter", func(p *Params) { p.ContactFilter = "kalman" }, "contact_filter"},
		{"zero ramp", func(p *Params) { p.GainRampThreshold = 0 }, "gain_ramp_threshold"},
		{"zero gear", func(p *Params) { p.GearRatio = 0 }, "gear_ratio"},
		{"negative rate limit", func(p *Params) { p.HipRateLimit = -1 }, "hip_rate_limit"},
		{"infinite rate limit", func(p *Params) { p.LegRateLimit = math.Inf(1) }, "leg_rate_limit"},
		{"zero control period", func(p *Params) { p.ControlPeriod = 0 }, "control_period"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)

			err := p.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidParams) {
				t.Errorf("error %v does not wrap ErrInvalidParams", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error %T is not a *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestParams_ValidateReportsFirstField(t *testing.T) {
	p := DefaultParams()
	p.HipP = -1
	p.StanceD = -1
	p.FlightP = -1

	for i := 0; i < 50; i++ {
		var verr *ValidationError
		if !errors.As(p.Validate(), &verr) {
			t.Fatal("expected a *ValidationError")
		}
		if verr.Field != "stance_d" {
			t.Fatalf("attempt %d: field = %q, want stance_d", i, verr.Field)
		}
	}
}

func TestPhase_TextRoundTrip(t *testing.T) {
	for _, ph := range []Phase{PhaseFlight, PhaseStance, PhaseDoubleSupport, PhaseSingleSupport} {
		b, _ := ph.MarshalText()
		var got Phase
		if err := got.UnmarshalText(b); err != nil {
			t.Fatal(err)
		}
		if got != ph {
			t.Errorf("round trip %v -> %s -> %v", ph, b, got)
		}
	}
}
