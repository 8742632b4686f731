package slip

// Phase is the discrete locomotion phase.
type Phase int

const (
	PhaseFlight Phase = iota
	PhaseStance
	PhaseDoubleSupport // Walking only
	PhaseSingleSupport // Walking only, parameterised by State.StanceLeg
)

// String returns the phase name used in logs and telemetry.
func (p Phase) String() string {
	switch p {
	case PhaseStance:
		return "stance"
	case PhaseDoubleSupport:
		return "double_support"
	case PhaseSingleSupport:
		return "single_support"
	default:
		return "flight"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "stance":
		*p = PhaseStance
	case "double_support":
		*p = PhaseDoubleSupport
	case "single_support":
		*p = PhaseSingleSupport
	default:
		*p = PhaseFlight
	}
	return nil
}

// State is the controller's persistent state. Only Step advances it.
type State struct {
	Phase     Phase `json:"phase"`
	StanceLeg int   `json:"stance_leg"` // Stance leg in single support, trailing leg in double support

	// PeakHeight is the highest body height seen in the current flight
	// (hopping) or vault (walking).
	PeakHeight float64 `json:"peak_height"`

	// AfterMidStance latches once the stance leg starts re-extending.
	AfterMidStance bool `json:"after_mid_stance"`

	// LastLegLength is the stance leg's spring length on the previous cycle.
	LastLegLength float64 `json:"last_leg_length"`

	Contact [NumLegs]ContactHistory `json:"-"`

	// Slew carries each leg's last commanded targets for rate limiting.
	Slew [NumLegs]Slew `json:"-"`

	TimeOfLastStance uint64 `json:"time_of_last_stance"`
	Time             uint64 `json:"time"`
}

// InContact reports the debounced contact of a leg.
func (s State) InContact(leg int) bool {
	return s.Contact[leg].Contact
}

// updatePeak raises PeakHeight to z if z is higher.
func (s *State) updatePeak(z float64) {
	if z > s.PeakHeight {
		s.PeakHeight = z
	}
}

// latchMidStance sets AfterMidStance the first cycle the leg lengthens.
// It never clears it; only liftoff does.
func (s *State) latchMidStance(length float64) {
	if !s.AfterMidStance && length > s.LastLegLength {
		s.AfterMidStance = true
	}
}

// touchdown enters stance.
func (s *State) touchdown() {
	s.Phase = PhaseStance
	s.TimeOfLastStance = s.Time
}

// liftoff enters flight and resets the per-stance regulation state.
func (s *State) liftoff() {
	s.Phase = PhaseFlight
	s.PeakHeight = 0
	s.AfterMidStance = false
}

// hopTransition evaluates the two-phase machine on the debounced contact of
// the hopping leg and returns the fired event.
func (s *State) hopTransition(contact bool) Event {
	switch s.Phase {
	case PhaseStance:
		if !contact {
			s.liftoff()
			return EventLiftoff
		}
		s.TimeOfLastStance = s.Time
	default:
		if contact {
			s.touchdown()
			return EventTouchdown
		}
	}
	return EventNone
}

// walkTransition evaluates the walking machine. lead/trailing roles are
// carried in StanceLeg; legAngle is used only to order the legs when both
// land in the same cycle.
func (s *State) walkTransition(contact [NumLegs]bool, legAngle [NumLegs]float64) Event {
	switch s.Phase {
	case PhaseSingleSupport:
		st, sw := s.StanceLeg, other(s.StanceLeg)
		switch {
		case contact[sw]:
			// Stance leg becomes the trailing leg.
			s.Phase = PhaseDoubleSupport
			s.TimeOfLastStance = s.Time
			return EventDoubleSupport
		case !contact[st]:
			s.Phase = PhaseFlight
			s.AfterMidStance = false
			return EventLiftoff
		}
		s.TimeOfLastStance = s.Time

	case PhaseDoubleSupport:
		tr, lead := s.StanceLeg, other(s.StanceLeg)
		switch {
		case !contact[tr] && !contact[lead]:
			s.Phase = PhaseFlight
			s.AfterMidStance = false
			return EventLiftoff
		case !contact[tr]:
			s.enterSingleSupport(lead)
			return EventSingleSupport
		case !contact[lead]:
			// Leading leg bounced off; trailing leg keeps the stance.
			s.enterSingleSupport(tr)
			return EventSingleSupport
		}
		s.TimeOfLastStance = s.Time

	default:
		switch {
		case contact[Left] && contact[Right]:
			s.Phase = PhaseDoubleSupport
			// The leg pointing further back (larger angle) trails.
			s.StanceLeg = Left
			if legAngle[Right] > legAngle[Left] {
				s.StanceLeg = Right
			}
			s.TimeOfLastStance = s.Time
			return EventTouchdown
		case contact[Left]:
			s.enterSingleSupport(Left)
			return EventTouchdown
		case contact[Right]:
			s.enterSingleSupport(Right)
			return EventTouchdown
		}
	}
	return EventNone
}

func (s *State) enterSingleSupport(leg int) {
	s.Phase = PhaseSingleSupport
	s.StanceLeg = leg
	s.PeakHeight = 0
	s.AfterMidStance = false
	s.TimeOfLastStance = s.Time
}

func other(leg int) int {
	return 1 - leg
}
