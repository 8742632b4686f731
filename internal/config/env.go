// Package config provides configuration helpers for go-hopper commands.
package config

import (
	"fmt"
	"os"
	"time"
)

// Defaults used when the environment does not override them.
const (
	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultRate      = time.Millisecond // 1 kHz control tick
	DefaultServerURL = "ws://localhost:8080"
)

// Port returns the HTTP listen port from HOPPER_PORT or the default.
func Port() string {
	if p := os.Getenv("HOPPER_PORT"); p != "" {
		return p
	}
	return DefaultPort
}

// LogLevel returns the log level from LOG_LEVEL or the default.
func LogLevel() string {
	if l := os.Getenv("LOG_LEVEL"); l != "" {
		return l
	}
	return DefaultLogLevel
}

// ParamsFile returns the optional YAML params path from HOPPER_PARAMS.
func ParamsFile() string {
	return os.Getenv("HOPPER_PARAMS")
}

// ServerURL returns the controller websocket base URL from HOPPER_URL.
// Falls back to the provided default if not set.
func ServerURL(defaultURL string) string {
	if u := os.Getenv("HOPPER_URL"); u != "" {
		return u
	}
	return defaultURL
}

// RobotURL returns the websocket URL a robot connects to.
func RobotURL(serverURL, robotID string) string {
	if robotID == "" {
		return fmt.Sprintf("%s/ws/robot", serverURL)
	}
	return fmt.Sprintf("%s/ws/robot/%s", serverURL, robotID)
}

// Rate returns the control tick from HOPPER_RATE (a Go duration) or the
// default. Unparseable values fall back to the default.
func Rate() time.Duration {
	if r := os.Getenv("HOPPER_RATE"); r != "" {
		if d, err := time.ParseDuration(r); err == nil && d > 0 {
			return d
		}
	}
	return DefaultRate
}
