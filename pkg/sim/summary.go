package sim

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/teslashibe/go-hopper/pkg/slip"
)

// Recorder is a host.Publisher that keeps every telemetry record.
type Recorder struct {
	mu      sync.Mutex
	records []slip.Record
}

// Publish implements host.Publisher.
func (r *Recorder) Publish(rec slip.Record) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// Records returns a copy of the recorded telemetry.
func (r *Recorder) Records() []slip.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]slip.Record(nil), r.records...)
}

// Summary describes a finished run.
type Summary struct {
	Steps      int     `json:"steps"`
	Duration   float64 `json:"duration_s"`
	Fallen     bool    `json:"fallen"`
	Touchdowns int     `json:"touchdowns"`
	Liftoffs   int     `json:"liftoffs"`
	Hops       int     `json:"hops"` // Completed flight phases
	ApexMean   float64 `json:"apex_mean"`
	ApexStd    float64 `json:"apex_std"`
	MeanXVel   float64 `json:"mean_x_vel"`
	MaxTorque  float64 `json:"max_torque"`
	Saturated  float64 `json:"saturated"`
	Distance   float64 `json:"distance"`
}

// Summarize computes run statistics from the plant trace and the
// controller's telemetry. records may be empty.
func Summarize(t *Trace, records []slip.Record, fallen bool) Summary {
	s := Summary{
		Steps:  t.Len(),
		Fallen: fallen,
	}
	if t.Len() == 0 {
		return s
	}
	s.Duration = t.T[len(t.T)-1]
	s.Distance = t.X[len(t.X)-1] - t.X[0]
	s.MeanXVel = stat.Mean(t.XVel, nil)
	s.Saturated = floats.Sum(t.Saturated)

	abs := make([]float64, 0, 2*t.Len())
	for i := range t.TorqueA {
		abs = append(abs, math.Abs(t.TorqueA[i]), math.Abs(t.TorqueB[i]))
	}
	s.MaxTorque = floats.Max(abs)

	apexes := Apexes(t)
	s.Hops = len(apexes)
	if len(apexes) > 0 {
		s.ApexMean, s.ApexStd = stat.MeanStdDev(apexes, nil)
		if len(apexes) == 1 {
			s.ApexStd = 0
		}
	}

	for _, r := range records {
		switch r.Event {
		case slip.EventTouchdown:
			s.Touchdowns++
		case slip.EventLiftoff:
			s.Liftoffs++
		}
	}
	return s
}

// Apexes returns the highest hip height of every flight phase that ended in
// touchdown. The initial drop counts as a flight.
func Apexes(t *Trace) []float64 {
	var (
		apexes []float64
		peak   = math.Inf(-1)
		flying bool
	)
	for i := range t.Z {
		if t.Stance[i] == 0 {
			flying = true
			peak = math.Max(peak, t.Z[i])
			continue
		}
		if flying {
			apexes = append(apexes, peak)
		}
		flying = false
		peak = math.Inf(-1)
	}
	return apexes
}
