// hopsim: run a controller against the simulated single-leg plant
//
// Local mode steps an in-process controller as fast as possible. With -url
// the plant connects to a running hopper service as a robot and is stepped
// in lockstep over the link.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/teslashibe/go-hopper/internal/config"
	hlog "github.com/teslashibe/go-hopper/internal/log"
	"github.com/teslashibe/go-hopper/pkg/host"
	"github.com/teslashibe/go-hopper/pkg/link"
	"github.com/teslashibe/go-hopper/pkg/params"
	"github.com/teslashibe/go-hopper/pkg/sim"
	"github.com/teslashibe/go-hopper/pkg/slip"
)

func main() {
	mode := flag.String("mode", string(slip.ModeHop), "Controller mode: hop or walk")
	steps := flag.Int("steps", 5000, "Number of control cycles")
	height := flag.Float64("height", sim.DefaultConfig().InitHeight, "Initial hip height (m)")
	xvel := flag.Float64("xvel", 0, "Initial forward speed (m/s)")
	paramsFile := flag.String("params", config.ParamsFile(), "YAML params file (or set HOPPER_PARAMS)")
	out := flag.String("out", "", "Directory for trace.csv and plots (empty = none)")
	url := flag.String("url", "", "Controller base URL, e.g. ws://localhost:8080 (empty = local)")
	robotID := flag.String("id", "", "Robot ID when connecting to a controller")
	logLevel := flag.String("log-level", config.LogLevel(), "debug, info, warn or error")
	flag.Parse()

	hlog.Init(*logLevel)

	cfg := sim.DefaultConfig()
	cfg.InitHeight = *height
	cfg.InitXVel = *xvel

	var (
		res sim.Result
		err error
	)
	if *url != "" {
		res, err = runRemote(config.RobotURL(*url, *robotID), cfg, *steps)
	} else {
		res, err = runLocal(slip.Mode(*mode), *paramsFile, cfg, *steps)
	}
	if err != nil {
		hlog.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	summary, _ := json.MarshalIndent(res.Summary, "", "  ")
	fmt.Println(string(summary))

	if *out != "" {
		if err := writeOutputs(*out, res.Trace); err != nil {
			hlog.Error("failed to write outputs", "error", err)
			os.Exit(1)
		}
	}
	if res.Summary.Fallen {
		os.Exit(2)
	}
}

func runLocal(mode slip.Mode, paramsFile string, cfg sim.Config, steps int) (sim.Result, error) {
	p := slip.DefaultParams()
	if paramsFile != "" {
		loaded, err := params.Load(paramsFile, p)
		if err != nil {
			return sim.Result{}, err
		}
		p = loaded
	}
	store, err := params.NewStore(p)
	if err != nil {
		return sim.Result{}, err
	}

	hlog.Info("simulating", "mode", mode, "steps", steps, "dt", cfg.Dt)
	return sim.Run(mode, store, cfg, steps, host.WithLogger(hlog.L()), host.WithID("hopsim"))
}

func runRemote(url string, cfg sim.Config, steps int) (sim.Result, error) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := link.Dial(ctx, url)
	if err != nil {
		return sim.Result{}, err
	}
	defer client.Close()

	hlog.Info("connected to controller", "url", url, "steps", steps)
	return sim.RunRemote(ctx, client, cfg, steps)
}

func writeOutputs(dir string, t *sim.Trace) error {
	csvPath := filepath.Join(dir, "trace.csv")
	if err := t.WriteCSV(csvPath); err != nil {
		return err
	}
	hlog.Info("trace written", "file", csvPath, "rows", t.Len())

	files, err := sim.SavePlots(dir, t)
	if err != nil {
		return err
	}
	for _, f := range files {
		hlog.Info("plot written", "file", f)
	}
	return nil
}
