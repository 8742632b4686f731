package slip

// DesiredHipAngle maps torso pitch to a hip target inside the hip range. A
// NaN pitch yields HipOffset.
func DesiredHipAngle(bodyAngle float64, p Params) float64 {
	var lim limiter
	return desiredHipAngle(bodyAngle, p, &lim)
}

func desiredHipAngle(bodyAngle float64, p Params, lim *limiter) float64 {
	return lim.bound(p.HipBodyGain*bodyAngle+p.HipOffset, p.MinHipAngle, p.MaxHipAngle, p.HipOffset)
}

// hipLaw holds the hip independently of the leg phase.
func hipLaw(leg LegState, body BodyState, p Params, lim *limiter, sl *Slew) float64 {
	sl.prime(leg, p)
	desired := sl.hipAngle(desiredHipAngle(body.Angle, p, lim), p)
	return p.HipP*(desired-leg.HipAngle) - p.HipD*leg.HipVel
}
