package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-hopper/pkg/bridge"
	"github.com/teslashibe/go-hopper/pkg/hub"
	"github.com/teslashibe/go-hopper/pkg/params"
	"github.com/teslashibe/go-hopper/pkg/slip"
)

// Status is the response of GET /api/status
type Status struct {
	Mode             string       `json:"mode"`
	Enabled          bool         `json:"enabled"`
	ParamsVersion    uint64       `json:"params_version"`
	Uptime           string       `json:"uptime"`
	TelemetryClients int          `json:"telemetry_clients"`
	TelemetryDropped uint64       `json:"telemetry_dropped"`
	Bridge           bridge.Stats `json:"bridge"`
}

// ParamsResponse is the body of params responses
type ParamsResponse struct {
	Version uint64      `json:"version"`
	Params  slip.Params `json:"params"`
}

// handleStatus returns the controller state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(Status{
		Mode:             string(s.bridge.Mode()),
		Enabled:          s.bridge.Enabled(),
		ParamsVersion:    s.params.Version(),
		Uptime:           time.Since(s.started).Round(time.Second).String(),
		TelemetryClients: s.telemetry.SubscriberCount(),
		TelemetryDropped: s.telemetry.Dropped(),
		Bridge:           s.bridge.GetStats(),
	})
}

// handleGetParams returns the active parameter snapshot
func (s *Server) handleGetParams(c *fiber.Ctx) error {
	return c.JSON(snapshotResponse(s.params.Snapshot()))
}

// handlePutParams applies a partial JSON update. Keys that are absent keep
// their current values; a body that fails to decode or validate is rejected
// as a whole.
func (s *Server) handlePutParams(c *fiber.Ctx) error {
	if _, err := s.params.Merge(c.Body()); err != nil {
		resp := fiber.Map{"error": err.Error()}
		var verr *slip.ValidationError
		if errors.As(err, &verr) {
			resp["field"] = verr.Field
		}
		return c.Status(fiber.StatusBadRequest).JSON(resp)
	}

	snap := s.params.Snapshot()
	s.log.Info("params updated", "version", snap.Version)
	s.publishParams(snap)
	return c.JSON(snapshotResponse(snap))
}

// handleResetParams restores the startup parameters
func (s *Server) handleResetParams(c *fiber.Ctx) error {
	s.params.Reset()
	snap := s.params.Snapshot()
	s.log.Info("params reset", "version", snap.Version)
	s.publishParams(snap)
	return c.JSON(snapshotResponse(snap))
}

// publishParams tells robots and telemetry subscribers about a new snapshot.
func (s *Server) publishParams(snap params.Snapshot) {
	if err := s.bridge.BroadcastParams(snap); err != nil {
		s.log.Warn("params broadcast failed", "error", err)
	}
	if err := s.telemetry.Announce(hub.KindParams, snapshotResponse(snap)); err != nil {
		s.log.Warn("params announce failed", "error", err)
	}
}

// handleEnable enables every robot's controller
func (s *Server) handleEnable(c *fiber.Ctx) error {
	s.bridge.EnableAll()
	s.log.Info("controllers enabled", "robots", s.bridge.RobotCount())
	s.announceEnabled(true)
	return c.JSON(fiber.Map{"enabled": true})
}

// handleDisable stops every robot's controller with a zero-torque command
func (s *Server) handleDisable(c *fiber.Ctx) error {
	s.bridge.DisableAll()
	s.log.Info("controllers disabled", "robots", s.bridge.RobotCount())
	s.announceEnabled(false)
	return c.JSON(fiber.Map{"enabled": false})
}

func (s *Server) announceEnabled(enabled bool) {
	if err := s.telemetry.Announce(hub.KindStatus, fiber.Map{"enabled": enabled}); err != nil {
		s.log.Warn("status announce failed", "error", err)
	}
}

// handleTelemetryWS streams telemetry records until the client disconnects
func (s *Server) handleTelemetryWS(c *websocket.Conn) {
	sub := hub.Subscribe(s.telemetry, c)
	if sub == nil {
		return
	}
	sub.Serve()
}

func snapshotResponse(snap params.Snapshot) ParamsResponse {
	return ParamsResponse{Version: snap.Version, Params: snap.Params}
}
