package sim

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/teslashibe/go-hopper/pkg/slip"
)

// Trace is the plant trajectory, one entry per step, stored as columns.
type Trace struct {
	T         []float64 // Time (s)
	X         []float64 // Hip x (m)
	Z         []float64 // Hip height (m)
	XVel      []float64
	ZVel      []float64
	FreeLen   []float64 // Motor-implied leg length
	LegLen    []float64 // Spring-side leg length
	Force     []float64 // Spring force (N)
	TorqueA   []float64
	TorqueB   []float64
	Stance    []float64 // 1 in stance, 0 in flight
	Saturated []float64
}

func (t *Trace) add(p *Plant, out slip.Output) {
	tq := out.Legs[slip.Left]
	a, b := p.segmentAngles()

	t.T = append(t.T, float64(p.step)*p.cfg.Dt)
	t.X = append(t.X, p.x)
	t.Z = append(t.Z, p.z)
	t.XVel = append(t.XVel, p.vx)
	t.ZVel = append(t.ZVel, p.vz)
	t.FreeLen = append(t.FreeLen, math.Cos(p.delta))
	t.LegLen = append(t.LegLen, slip.LegLength(a, b))
	t.Force = append(t.Force, p.force)
	t.TorqueA = append(t.TorqueA, tq.TorqueA)
	t.TorqueB = append(t.TorqueB, tq.TorqueB)
	stance := 0.0
	if p.stance {
		stance = 1
	}
	t.Stance = append(t.Stance, stance)
	t.Saturated = append(t.Saturated, float64(out.Saturated))
}

// Len returns the number of recorded steps.
func (t *Trace) Len() int {
	return len(t.T)
}

// WriteCSV writes the trace to filename, creating parent directories.
func (t *Trace) WriteCSV(filename string) error {
	header := []string{"t", "x", "z", "x_vel", "z_vel", "free_len", "leg_len",
		"force", "torque_a", "torque_b", "stance", "saturated"}
	cols := [][]float64{t.T, t.X, t.Z, t.XVel, t.ZVel, t.FreeLen, t.LegLen,
		t.Force, t.TorqueA, t.TorqueB, t.Stance, t.Saturated}
	return writeCSV(filename, header, cols)
}

func writeCSV(filename string, header []string, cols [][]float64) error {
	if len(cols) == 0 {
		return errors.New("sim: csv has no columns")
	}
	n := len(cols[0])
	for _, c := range cols {
		if len(c) != n {
			return errors.New("sim: csv column size mismatch")
		}
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("sim: cannot create directory: %w", err)
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("sim: cannot open %s: %w", filename, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("sim: cannot write header: %w", err)
	}

	row := make([]string, len(cols))
	for r := 0; r < n; r++ {
		for c := range cols {
			row[c] = fmt.Sprintf("%.9g", cols[c][r])
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("sim: cannot write row %d: %w", r, err)
		}
	}
	w.Flush()
	return w.Error()
}
