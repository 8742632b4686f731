// Package bridge provides the WebSocket endpoint robots connect to.
//
// Each connected robot gets its own host session. Every state message is one
// control cycle and is answered with a command message on the same
// connection.
package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	hlog "github.com/teslashibe/go-hopper/internal/log"
	"github.com/teslashibe/go-hopper/pkg/host"
	"github.com/teslashibe/go-hopper/pkg/params"
	"github.com/teslashibe/go-hopper/pkg/protocol"
	"github.com/teslashibe/go-hopper/pkg/slip"
)

var (
	// ErrRobotNotConnected is returned when addressing an unknown robot.
	ErrRobotNotConnected = errors.New("bridge: robot not connected")

	// ErrDuplicateRobot is returned when a robot ID is already connected.
	ErrDuplicateRobot = errors.New("bridge: robot already connected")
)

// RobotConnection represents a connected robot
type RobotConnection struct {
	ID        string
	Conn      *websocket.Conn
	Session   *host.Session
	Connected time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

// Send sends a message to the robot
func (r *RobotConnection) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Conn.WriteMessage(websocket.TextMessage, data)
}

// LastSeen returns when the robot last sent a message.
func (r *RobotConnection) LastSeen() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSeen
}

func (r *RobotConnection) touch() {
	r.mu.Lock()
	r.lastSeen = time.Now()
	r.mu.Unlock()
}

// Bridge manages WebSocket connections from robots
type Bridge struct {
	mu     sync.RWMutex
	robots map[string]*RobotConnection

	mode      slip.Mode
	params    *params.Store
	publisher host.Publisher
	log       *slog.Logger

	// New sessions start disabled while false
	enabled atomic.Bool

	// Callbacks
	onConnect    func(robotID string)
	onDisconnect func(robotID string)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	cycles           atomic.Uint64
	parseErrors      atomic.Uint64
}

// New creates a bridge that runs a `mode` controller per robot, reading
// parameters from store. pub may be nil.
func New(mode slip.Mode, store *params.Store, pub host.Publisher) (*Bridge, error) {
	if _, err := slip.New(mode); err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	b := &Bridge{
		robots:    make(map[string]*RobotConnection),
		mode:      mode,
		params:    store,
		publisher: pub,
		log:       hlog.With("component", "bridge"),
	}
	b.enabled.Store(true)
	return b, nil
}

// OnConnect sets the callback for robot connections
func (b *Bridge) OnConnect(callback func(robotID string)) {
	b.mu.Lock()
	b.onConnect = callback
	b.mu.Unlock()
}

// OnDisconnect sets the callback for robot disconnections
func (b *Bridge) OnDisconnect(callback func(robotID string)) {
	b.mu.Lock()
	b.onDisconnect = callback
	b.mu.Unlock()
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (b *Bridge) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware
	app.Use("/ws/robot", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// Robot connection endpoint
	app.Get("/ws/robot", websocket.New(b.handleRobot))
	app.Get("/ws/robot/:id", websocket.New(b.handleRobot))
}

// handleRobot handles a robot WebSocket connection
func (b *Bridge) handleRobot(c *websocket.Conn) {
	// Get robot ID from path or generate one
	robotID := c.Params("id")
	if robotID == "" {
		robotID = generateRobotID()
	}
	log := b.log.With("robot", robotID)

	robot, err := b.connect(robotID, c)
	if err != nil {
		log.Warn("robot rejected", "error", err)
		c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		return
	}
	defer b.disconnect(robot)

	// Tell the robot what it is running against
	snap := b.params.Snapshot()
	if msg, err := protocol.NewParamsMessage(snap.Version, snap.Params); err == nil {
		if err := robot.Send(msg); err == nil {
			b.messagesSent.Add(1)
		}
	}

	// Read loop
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			log.Debug("robot read error", "error", err)
			return
		}

		robot.touch()
		b.messagesReceived.Add(1)
		if err := b.handleMessage(robot, data); err != nil {
			log.Warn("robot message failed", "error", err)
		}
	}
}

// connect registers a new robot and its session.
func (b *Bridge) connect(robotID string, c *websocket.Conn) (*RobotConnection, error) {
	b.mu.Lock()
	if _, ok := b.robots[robotID]; ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRobot, robotID)
	}
	// Reserve the ID before building the session
	b.robots[robotID] = nil
	b.mu.Unlock()

	opts := []host.Option{host.WithID(robotID), host.WithLogger(b.log.With("robot", robotID))}
	if b.publisher != nil {
		opts = append(opts, host.WithPublisher(b.publisher))
	}
	session, err := host.NewSession(b.mode, b.params, opts...)
	if err != nil {
		b.mu.Lock()
		delete(b.robots, robotID)
		b.mu.Unlock()
		return nil, err
	}
	if !b.enabled.Load() {
		session.Disable()
	}

	now := time.Now()
	robot := &RobotConnection{
		ID:        robotID,
		Conn:      c,
		Session:   session,
		Connected: now,
		lastSeen:  now,
	}

	b.mu.Lock()
	b.robots[robotID] = robot
	count := b.countLocked()
	cb := b.onConnect
	b.mu.Unlock()

	b.log.Info("robot connected", "robot", robotID, "robots", count)
	if cb != nil {
		cb(robotID)
	}
	return robot, nil
}

// disconnect removes a robot and stops its session.
func (b *Bridge) disconnect(robot *RobotConnection) {
	robot.Session.Disable()

	b.mu.Lock()
	delete(b.robots, robot.ID)
	count := b.countLocked()
	cb := b.onDisconnect
	b.mu.Unlock()

	b.log.Info("robot disconnected", "robot", robot.ID, "robots", count)
	if cb != nil {
		cb(robot.ID)
	}
}

// handleMessage processes an incoming message from a robot
func (b *Bridge) handleMessage(robot *RobotConnection, data []byte) error {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		b.parseErrors.Add(1)
		return err
	}

	switch msg.Type {
	case protocol.TypeState:
		state, err := msg.GetStateData()
		if err != nil {
			b.parseErrors.Add(1)
			return fmt.Errorf("bridge: decode state: %w", err)
		}
		out := robot.Session.Step(state.State)
		b.cycles.Add(1)

		reply, err := protocol.NewCommandMessage(state.Seq, out, robot.Session.State().Phase)
		if err != nil {
			return err
		}
		b.messagesSent.Add(1)
		return robot.Send(reply)

	case protocol.TypePing:
		// A ping without data still gets an anonymous pong
		id := ""
		ping, err := msg.GetPingData()
		switch {
		case err == nil:
			id = ping.ID
		case errors.Is(err, protocol.ErrNoData):
		default:
			b.parseErrors.Add(1)
			return fmt.Errorf("bridge: decode ping: %w", err)
		}
		return b.SendPong(robot.ID, id, msg.Timestamp)
	}
	return nil
}

// SendPong sends a pong response to a robot
func (b *Bridge) SendPong(robotID, id string, pingTS int64) error {
	msg, err := protocol.NewPongMessage(id, pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return b.sendToRobot(robotID, msg)
}

// sendToRobot sends a message to a specific robot
func (b *Bridge) sendToRobot(robotID string, msg *protocol.Message) error {
	robot := b.GetRobot(robotID)
	if robot == nil {
		return fmt.Errorf("%w: %s", ErrRobotNotConnected, robotID)
	}

	b.messagesSent.Add(1)
	return robot.Send(msg)
}

// Broadcast sends a message to all connected robots
func (b *Bridge) Broadcast(msg *protocol.Message) {
	for _, robot := range b.GetRobots() {
		b.messagesSent.Add(1)
		if err := robot.Send(msg); err != nil {
			b.log.Warn("broadcast failed", "robot", robot.ID, "error", err)
		}
	}
}

// BroadcastParams tells every robot about a new parameter snapshot.
func (b *Bridge) BroadcastParams(snap params.Snapshot) error {
	msg, err := protocol.NewParamsMessage(snap.Version, snap.Params)
	if err != nil {
		return err
	}
	b.Broadcast(msg)
	return nil
}

// Enable re-enables one robot's controller.
func (b *Bridge) Enable(robotID string) error {
	robot := b.GetRobot(robotID)
	if robot == nil {
		return fmt.Errorf("%w: %s", ErrRobotNotConnected, robotID)
	}
	robot.Session.Enable()
	return nil
}

// Disable stops one robot's controller and sends it the zero-torque command
// without waiting for its next state.
func (b *Bridge) Disable(robotID string) error {
	robot := b.GetRobot(robotID)
	if robot == nil {
		return fmt.Errorf("%w: %s", ErrRobotNotConnected, robotID)
	}
	return b.sendShutdown(robot)
}

// EnableAll enables every connected robot and robots that connect later.
func (b *Bridge) EnableAll() {
	b.enabled.Store(true)
	for _, robot := range b.GetRobots() {
		robot.Session.Enable()
	}
}

// DisableAll disables every connected robot and robots that connect later.
func (b *Bridge) DisableAll() {
	b.enabled.Store(false)
	for _, robot := range b.GetRobots() {
		if err := b.sendShutdown(robot); err != nil {
			b.log.Warn("shutdown command failed", "robot", robot.ID, "error", err)
		}
	}
}

// Mode returns the controller variant run for each robot.
func (b *Bridge) Mode() slip.Mode {
	return b.mode
}

// Enabled reports whether new sessions start enabled.
func (b *Bridge) Enabled() bool {
	return b.enabled.Load()
}

func (b *Bridge) sendShutdown(robot *RobotConnection) error {
	out := robot.Session.Disable()
	msg, err := protocol.NewCommandMessage(0, out, robot.Session.State().Phase)
	if err != nil {
		return err
	}
	b.messagesSent.Add(1)
	return robot.Send(msg)
}

// GetRobot returns a robot connection by ID
func (b *Bridge) GetRobot(robotID string) *RobotConnection {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.robots[robotID]
}

// GetRobots returns all connected robots
func (b *Bridge) GetRobots() []*RobotConnection {
	b.mu.RLock()
	defer b.mu.RUnlock()

	robots := make([]*RobotConnection, 0, len(b.robots))
	for _, r := range b.robots {
		if r != nil {
			robots = append(robots, r)
		}
	}
	return robots
}

// RobotCount returns the number of connected robots
func (b *Bridge) RobotCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.countLocked()
}

// countLocked counts registered robots, skipping reserved IDs.
func (b *Bridge) countLocked() int {
	n := 0
	for _, r := range b.robots {
		if r != nil {
			n++
		}
	}
	return n
}

// Stats contains bridge statistics
type Stats struct {
	RobotCount       int    `json:"robot_count"`
	Enabled          bool   `json:"enabled"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	Cycles           uint64 `json:"cycles"`
	ParseErrors      uint64 `json:"parse_errors"`
}

// GetStats returns bridge statistics
func (b *Bridge) GetStats() Stats {
	return Stats{
		RobotCount:       b.RobotCount(),
		Enabled:          b.enabled.Load(),
		MessagesReceived: b.messagesReceived.Load(),
		MessagesSent:     b.messagesSent.Load(),
		Cycles:           b.cycles.Load(),
		ParseErrors:      b.parseErrors.Load(),
	}
}

// RobotInfo contains info about a connected robot
type RobotInfo struct {
	ID        string     `json:"id"`
	Connected time.Time  `json:"connected"`
	LastSeen  time.Time  `json:"last_seen"`
	Session   host.Stats `json:"session"`
}

// GetRobotInfos returns info about all connected robots
func (b *Bridge) GetRobotInfos() []RobotInfo {
	robots := b.GetRobots()
	infos := make([]RobotInfo, 0, len(robots))
	for _, r := range robots {
		infos = append(infos, RobotInfo{
			ID:        r.ID,
			Connected: r.Connected,
			LastSeen:  r.LastSeen(),
			Session:   r.Session.Stats(),
		})
	}
	return infos
}

// RegisterAPIRoutes registers API routes for robot management
func (b *Bridge) RegisterAPIRoutes(api fiber.Router) {
	robots := api.Group("/robots")

	// List connected robots
	robots.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"robots": b.GetRobotInfos(),
			"count":  b.RobotCount(),
		})
	})

	// Get bridge stats
	robots.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(b.GetStats())
	})

	robots.Post("/:id/enable", func(c *fiber.Ctx) error {
		if err := b.Enable(c.Params("id")); err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "enabled"})
	})

	robots.Post("/:id/disable", func(c *fiber.Ctx) error {
		if err := b.Disable(c.Params("id")); err != nil {
			status := fiber.StatusInternalServerError
			if errors.Is(err, ErrRobotNotConnected) {
				status = fiber.StatusNotFound
			}
			return c.Status(status).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "disabled"})
	})
}

// generateRobotID generates a unique robot ID
func generateRobotID() string {
	return "robot-" + uuid.New().String()[:8]
}
