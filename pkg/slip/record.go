package slip

// Record is the per-cycle telemetry entry: enough to replay the phase
// machine and audit the commanded torques.
type Record struct {
	Time             uint64             `json:"time"`
	Phase            Phase              `json:"phase"`
	StanceLeg        int                `json:"stance_leg"`
	Event            Event              `json:"event"`
	PeakHeight       float64            `json:"peak_height"`
	AfterMidStance   bool               `json:"after_mid_stance"`
	DesiredLegLength float64            `json:"desired_leg_length"`
	Contact          [NumLegs]bool      `json:"contact"`
	Torques          [NumLegs]LegTorque `json:"torques"`
	Saturated        int                `json:"saturated"`
}

// NewRecord builds the telemetry entry for a finished cycle from its output
// and the resulting state.
func NewRecord(out Output, s State) Record {
	return Record{
		Time:             s.Time,
		Phase:            s.Phase,
		StanceLeg:        s.StanceLeg,
		Event:            out.Event,
		PeakHeight:       s.PeakHeight,
		AfterMidStance:   s.AfterMidStance,
		DesiredLegLength: out.DesiredLegLength,
		Contact:          [NumLegs]bool{s.InContact(Left), s.InContact(Right)},
		Torques:          out.Legs,
		Saturated:        out.Saturated,
	}
}
