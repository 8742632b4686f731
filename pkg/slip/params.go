package slip

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams is returned (wrapped) when a Params value fails validation.
var ErrInvalidParams = errors.New("slip: invalid params")

// ValidationError describes the first Params field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("slip: invalid params: %s %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidParams so callers can match with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidParams
}

// ContactFilter selects the debounce policy of the contact estimator.
type ContactFilter string

const (
	// FilterDebounce accepts a change only after a run of agreeing samples.
	FilterDebounce ContactFilter = "debounce"

	// FilterMajority votes over the most recent samples.
	FilterMajority ContactFilter = "majority"
)

// Params holds the controller gains and setpoints. The controller reads it
// as a value and never mutates it.
type Params struct {
	// Stance leg force control
	StanceP float64 `json:"stance_p" yaml:"stance_p"`
	StanceD float64 `json:"stance_d" yaml:"stance_d"`

	// Flight leg position control
	FlightP float64 `json:"flight_p" yaml:"flight_p"`
	FlightD float64 `json:"flight_d" yaml:"flight_d"`

	// Hip/torso control
	HipP        float64 `json:"hip_p" yaml:"hip_p"`
	HipD        float64 `json:"hip_d" yaml:"hip_d"`
	HipBodyGain float64 `json:"hip_body_gain" yaml:"hip_body_gain"` // desiredHip = gain*bodyAngle + offset
	HipOffset   float64 `json:"hip_offset" yaml:"hip_offset"`

	// Gait setpoints
	PreferredLegLength float64 `json:"preferred_leg_length" yaml:"preferred_leg_length"`
	DesiredHopHeight   float64 `json:"desired_hop_height" yaml:"desired_hop_height"`
	DesiredXVel        float64 `json:"desired_x_vel" yaml:"desired_x_vel"`

	// Regulation gains
	LegAngleGain  float64 `json:"leg_angle_gain" yaml:"leg_angle_gain"`   // Horizontal velocity to leg angle
	XVelGain      float64 `json:"x_vel_gain" yaml:"x_vel_gain"`           // Desired velocity feed-forward
	HopHeightGain float64 `json:"hop_height_gain" yaml:"hop_height_gain"` // Apex error to leg extension

	// Contact estimation
	ContactDebounce   int           `json:"contact_debounce" yaml:"contact_debounce"`
	ContactFilter     ContactFilter `json:"contact_filter" yaml:"contact_filter"`
	ToeForceThreshold float64       `json:"toe_force_threshold" yaml:"toe_force_threshold"` // 0 disables the analog path

	// Safety bounds
	MaxTorque    float64 `json:"max_torque" yaml:"max_torque"`
	MinLegLength float64 `json:"min_leg_length" yaml:"min_leg_length"`
	MaxLegLength float64 `json:"max_leg_length" yaml:"max_leg_length"`
	MinLegAngle  float64 `json:"min_leg_angle" yaml:"min_leg_angle"`
	MaxLegAngle  float64 `json:"max_leg_angle" yaml:"max_leg_angle"`
	MinHipAngle  float64 `json:"min_hip_angle" yaml:"min_hip_angle"`
	MaxHipAngle  float64 `json:"max_hip_angle" yaml:"max_hip_angle"`

	// Flight gain ramp: full gain once the motor error exceeds this (rad)
	GainRampThreshold float64 `json:"gain_ramp_threshold" yaml:"gain_ramp_threshold"`

	// Series spring correction
	SpringStiffness float64 `json:"spring_stiffness" yaml:"spring_stiffness"`
	GearRatio       float64 `json:"gear_ratio" yaml:"gear_ratio"`

	// Setpoint rate limits, 0 disables. Leg and hip in rad/s, spring in
	// normalised length per second.
	LegRateLimit    float64 `json:"leg_rate_limit" yaml:"leg_rate_limit"`
	HipRateLimit    float64 `json:"hip_rate_limit" yaml:"hip_rate_limit"`
	SpringRateLimit float64 `json:"spring_rate_limit" yaml:"spring_rate_limit"`
	ControlPeriod   float64 `json:"control_period" yaml:"control_period"` // Seconds per Step
}

// DefaultParams returns gains tuned for the single-leg hopper on the boom.
func DefaultParams() Params {
	return Params{
		StanceP: 300,
		StanceD: 10,
		FlightP: 150,
		FlightD: 8,

		HipP:        100,
		HipD:        5,
		HipBodyGain: DefaultHipBodyGain,
		HipOffset:   DefaultHipOffset,

		PreferredLegLength: 0.90,
		DesiredHopHeight:   1.0,
		DesiredXVel:        0,

		LegAngleGain:  0.10,
		XVelGain:      0.10,
		HopHeightGain: 1.0,

		ContactDebounce: 1, // Raw toe switch
		ContactFilter:   FilterDebounce,

		MaxTorque:    DefaultMaxTorque,
		MinLegLength: DefaultMinLegLength,
		MaxLegLength: DefaultMaxLegLength,
		MinLegAngle:  DefaultMinLegAngle,
		MaxLegAngle:  DefaultMaxLegAngle,
		MinHipAngle:  DefaultMinHipAngle,
		MaxHipAngle:  DefaultMaxHipAngle,

		GainRampThreshold: DefaultGainRampThreshold,

		SpringStiffness: 0,
		GearRatio:       DefaultGearRatio,

		ControlPeriod: DefaultControlPeriod,
	}
}

// field pairs a Params value with its JSON name for validation.
type field struct {
	name  string
	value float64
}

// Validate checks that the params are usable by the controller. Fields are
// checked in declaration order so the reported field is stable.
func (p *Params) Validate() error {
	gains := []field{
		{"stance_p", p.StanceP}, {"stance_d", p.StanceD},
		{"flight_p", p.FlightP}, {"flight_d", p.FlightD},
		{"hip_p", p.HipP}, {"hip_d", p.HipD},
	}
	finite := append(gains[:len(gains):len(gains)],
		field{"hip_body_gain", p.HipBodyGain}, field{"hip_offset", p.HipOffset},
		field{"preferred_leg_length", p.PreferredLegLength},
		field{"desired_hop_height", p.DesiredHopHeight},
		field{"desired_x_vel", p.DesiredXVel},
		field{"leg_angle_gain", p.LegAngleGain},
		field{"x_vel_gain", p.XVelGain},
		field{"hop_height_gain", p.HopHeightGain},
		field{"toe_force_threshold", p.ToeForceThreshold},
		field{"spring_stiffness", p.SpringStiffness},
	)
	for _, f := range finite {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &ValidationError{Field: f.name, Reason: "must be finite"}
		}
	}
	for _, f := range gains {
		if f.value < 0 {
			return &ValidationError{Field: f.name, Reason: "must not be negative"}
		}
	}

	if !(p.MaxTorque > 0) || math.IsInf(p.MaxTorque, 0) {
		return &ValidationError{Field: "max_torque", Reason: "must be positive"}
	}
	if !(p.GainRampThreshold > 0) {
		return &ValidationError{Field: "gain_ramp_threshold", Reason: "must be positive"}
	}
	if !(p.GearRatio > 0) {
		return &ValidationError{Field: "gear_ratio", Reason: "must be positive"}
	}

	for _, f := range []field{
		{"leg_rate_limit", p.LegRateLimit},
		{"hip_rate_limit", p.HipRateLimit},
		{"spring_rate_limit", p.SpringRateLimit},
	} {
		if !(f.value >= 0) || math.IsInf(f.value, 0) {
			return &ValidationError{Field: f.name, Reason: "must be finite and not negative"}
		}
	}
	if !(p.ControlPeriod > 0) || math.IsInf(p.ControlPeriod, 0) {
		return &ValidationError{Field: "control_period", Reason: "must be positive"}
	}

	if err := checkRange("leg_length", p.MinLegLength, p.MaxLegLength); err != nil {
		return err
	}
	// acos(length) must be defined over the whole range
	if p.MinLegLength <= 0 || p.MaxLegLength > 1 {
		return &ValidationError{Field: "leg_length", Reason: "bounds must lie in (0, 1]"}
	}
	if err := checkRange("leg_angle", p.MinLegAngle, p.MaxLegAngle); err != nil {
		return err
	}
	if err := checkRange("hip_angle", p.MinHipAngle, p.MaxHipAngle); err != nil {
		return err
	}

	if p.ContactDebounce < 1 || p.ContactDebounce > ContactHistoryCap {
		return &ValidationError{
			Field:  "contact_debounce",
			Reason: fmt.Sprintf("must be in [1, %d]", ContactHistoryCap),
		}
	}
	switch p.ContactFilter {
	case FilterDebounce, FilterMajority:
	default:
		return &ValidationError{Field: "contact_filter", Reason: fmt.Sprintf("unknown policy %q", p.ContactFilter)}
	}

	return nil
}

func checkRange(field string, lo, hi float64) error {
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return &ValidationError{Field: field, Reason: "bounds must be finite"}
	}
	if lo >= hi {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("min %.4f must be below max %.4f", lo, hi)}
	}
	return nil
}
