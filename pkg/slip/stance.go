package slip

// LegExtension is the SLIP energy regulation term. After mid-stance the leg
// extends when the last apex undershot the target and retracts when it
// overshot.
func LegExtension(afterMidStance bool, peakHeight float64, p Params) float64 {
	if !afterMidStance {
		return 0
	}
	return p.HopHeightGain * (p.DesiredHopHeight - peakHeight)
}

// DesiredLegLength adds the extension to the preferred length and clamps the
// result to the mechanical range.
func DesiredLegLength(extension float64, p Params) float64 {
	var lim limiter
	return desiredLegLength(extension, p, &lim)
}

func desiredLegLength(extension float64, p Params, lim *limiter) float64 {
	return lim.bound(p.PreferredLegLength+extension, p.MinLegLength, p.MaxLegLength, p.PreferredLegLength)
}

// StanceForce is the net leg-length force for a desired length. The spring
// term corrects for series spring deflection and vanishes when
// SpringStiffness is 0.
func StanceForce(leg LegState, desiredLength float64, p Params) float64 {
	r0, r0Rate := ZeroForceLength(leg)
	r := SpringLength(leg)
	return p.StanceP*(desiredLength-r0) -
		p.StanceD*r0Rate +
		p.SpringStiffness*(r0-r)/p.GearRatio
}

// stanceLaw regulates leg length. The differential mechanism turns an
// opposed torque pair into leg-length force.
func stanceLaw(leg LegState, afterMidStance bool, peakHeight float64, p Params, lim *limiter, sl *Slew) (LegTorque, float64) {
	sl.prime(leg, p)
	ext := LegExtension(afterMidStance, peakHeight, p)
	desired := sl.legLength(desiredLegLength(ext, p, lim), p)

	force := StanceForce(leg, desired, p)
	return LegTorque{TorqueA: -force, TorqueB: force}, desired
}
