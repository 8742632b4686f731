// hopper: SLIP controller service
// Robots connect over WebSocket and are stepped one state at a time; gains
// are tuned live through the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-hopper/internal/config"
	hlog "github.com/teslashibe/go-hopper/internal/log"
	"github.com/teslashibe/go-hopper/pkg/bridge"
	"github.com/teslashibe/go-hopper/pkg/hub"
	"github.com/teslashibe/go-hopper/pkg/params"
	"github.com/teslashibe/go-hopper/pkg/slip"
	"github.com/teslashibe/go-hopper/pkg/web"
)

var version = "0.1.0"

func main() {
	port := flag.String("port", config.Port(), "HTTP server port (or set HOPPER_PORT)")
	mode := flag.String("mode", string(slip.ModeHop), "Controller mode: hop or walk")
	paramsFile := flag.String("params", config.ParamsFile(), "YAML params file (or set HOPPER_PARAMS)")
	every := flag.Int("telemetry-every", 10, "Forward every Nth cycle to telemetry clients")
	logLevel := flag.String("log-level", config.LogLevel(), "debug, info, warn or error")
	flag.Parse()

	hlog.Init(*logLevel)

	fmt.Println()
	fmt.Println("🦘 Hopper v" + version)
	fmt.Printf("   Mode: %s\n", *mode)
	fmt.Println()

	p := slip.DefaultParams()
	if *paramsFile != "" {
		loaded, err := params.Load(*paramsFile, p)
		if err != nil {
			hlog.Error("failed to load params", "file", *paramsFile, "error", err)
			os.Exit(1)
		}
		p = loaded
		hlog.Info("params loaded", "file", *paramsFile)
	}

	store, err := params.NewStore(p)
	if err != nil {
		hlog.Error("invalid params", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetry := hub.New("telemetry", *every)
	go telemetry.Run(ctx)

	b, err := bridge.New(slip.Mode(*mode), store, telemetry)
	if err != nil {
		hlog.Error("failed to create bridge", "error", err)
		os.Exit(1)
	}
	b.OnConnect(func(robotID string) {
		hlog.Info("robot online", "robot", robotID)
	})
	b.OnDisconnect(func(robotID string) {
		hlog.Info("robot offline", "robot", robotID)
	})

	server := web.NewServer(*port, store, b, telemetry)
	server.StartAsync()

	fmt.Printf("   Robots:    ws://localhost:%s/ws/robot/:id\n", *port)
	fmt.Printf("   Telemetry: ws://localhost:%s/ws/telemetry\n", *port)
	fmt.Printf("   Params:    http://localhost:%s/api/params\n", *port)
	fmt.Println()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\n👋 Shutting down...")

	// Zero every robot's motors before the sockets close
	b.DisableAll()
	cancel()

	if err := server.Shutdown(); err != nil {
		hlog.Error("shutdown error", "error", err)
	}

	fmt.Println("✅ Goodbye!")
}
