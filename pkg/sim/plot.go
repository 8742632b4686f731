package sim

import (
	"bufio"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// series is one named line on a plot.
type series struct {
	name  string
	ys    []float64
	color color.Color
}

var (
	blue   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	orange = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	green  = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

func stylePlot(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(18)
	p.Title.Padding = vg.Points(10)

	p.X.Label.TextStyle.Font.Size = vg.Points(14)
	p.Y.Label.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Padding = vg.Points(8)
	p.Y.Label.Padding = vg.Points(8)

	p.X.LineStyle.Width = vg.Points(1.5)
	p.Y.LineStyle.Width = vg.Points(1.5)
	p.X.Padding = vg.Points(12)
	p.Y.Padding = vg.Points(12)

	p.X.Tick.Label.Font.Size = vg.Points(11)
	p.Y.Tick.Label.Font.Size = vg.Points(11)

	p.Add(plotter.NewGrid())
}

func savePlotPNG(p *plot.Plot, widthIn, heightIn float64, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("sim: cannot create directory: %w", err)
	}
	w := vg.Length(widthIn) * vg.Inch
	h := vg.Length(heightIn) * vg.Inch

	c := vgimg.NewWith(
		vgimg.UseWH(w, h),
		vgimg.UseDPI(150),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("sim: cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	pngc := vgimg.PngCanvas{Canvas: c}
	if _, err := pngc.WriteTo(bw); err != nil {
		return fmt.Errorf("sim: cannot write png: %w", err)
	}
	return bw.Flush()
}

func saveLinePlot(filename, title, xlabel, ylabel string, xs []float64, lines ...series) error {
	if len(xs) == 0 {
		return fmt.Errorf("sim: plot %q has no data", title)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	stylePlot(p)

	for _, s := range lines {
		if len(s.ys) != len(xs) {
			return fmt.Errorf("sim: plot %q series %q length mismatch", title, s.name)
		}
		pts := make(plotter.XYs, len(xs))
		for i := range xs {
			pts[i].X = xs[i]
			pts[i].Y = s.ys[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = s.color
		p.Add(line)
		if len(lines) > 1 {
			p.Legend.Add(s.name, line)
		}
	}
	p.Legend.Top = true

	return savePlotPNG(p, 8.0, 4.5, filename)
}

// SavePlots writes height, leg length, spring force and torque plots of the
// trace into dir and returns the file paths.
func SavePlots(dir string, t *Trace) ([]string, error) {
	plots := []struct {
		file, title, ylabel string
		lines               []series
	}{
		{"height.png", "Hip height", "z (m)", []series{
			{"z", t.Z, blue},
		}},
		{"leg_length.png", "Leg length", "length", []series{
			{"free", t.FreeLen, blue},
			{"spring", t.LegLen, orange},
		}},
		{"spring_force.png", "Spring force", "F (N)", []series{
			{"force", t.Force, green},
		}},
		{"torques.png", "Motor torques", "torque (N·m)", []series{
			{"A", t.TorqueA, blue},
			{"B", t.TorqueB, orange},
		}},
		{"velocity.png", "Hip velocity", "v (m/s)", []series{
			{"x", t.XVel, blue},
			{"z", t.ZVel, orange},
		}},
	}

	var files []string
	for _, pl := range plots {
		path := filepath.Join(dir, pl.file)
		if err := saveLinePlot(path, pl.title, "time (s)", pl.ylabel, t.T, pl.lines...); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}
