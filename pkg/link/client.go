// Package link is the robot side of the controller protocol: it sends sensed
// states to a bridge and receives torque commands.
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	hlog "github.com/teslashibe/go-hopper/internal/log"
	"github.com/teslashibe/go-hopper/pkg/protocol"
	"github.com/teslashibe/go-hopper/pkg/slip"
)

var (
	// ErrClosed is returned after the connection has closed.
	ErrClosed = errors.New("link: connection closed")

	// ErrTimeout is returned when no command answers a state in time.
	ErrTimeout = errors.New("link: command timeout")
)

// DefaultTimeout bounds the wait for a command in Step.
const DefaultTimeout = 100 * time.Millisecond

// Client manages the WebSocket connection to a controller bridge
type Client struct {
	ws   *websocket.Conn
	wsMu sync.Mutex
	log  *slog.Logger

	// Timeout for Step; zero means DefaultTimeout
	Timeout time.Duration

	seq      atomic.Uint64
	commands chan protocol.CommandData
	params   atomic.Pointer[protocol.ParamsData]
	disabled atomic.Bool
	latency  atomic.Int64 // Last ping round trip in ms

	done    chan struct{}
	readErr error
}

// Dial connects to a bridge robot endpoint, e.g. ws://host:8080/ws/robot/leg-1.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("link: connect %s: %w", url, err)
	}

	c := &Client{
		ws:       ws,
		log:      hlog.With("component", "link", "url", url),
		commands: make(chan protocol.CommandData, 16),
		done:     make(chan struct{}),
	}
	go c.handleMessages()
	return c, nil
}

// handleMessages reads until the connection closes
func (c *Client) handleMessages() {
	defer close(c.done)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.readErr = err
			return
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			c.log.Warn("parse error", "error", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeCommand:
			cmd, err := msg.GetCommandData()
			if err != nil {
				c.log.Warn("bad command", "error", err)
				continue
			}
			// seq 0 is an unsolicited shutdown command
			if cmd.Seq == 0 {
				c.disabled.Store(true)
			}
			select {
			case c.commands <- *cmd:
			default:
				c.log.Debug("command queue full, dropping", "seq", cmd.Seq)
			}

		case protocol.TypeParams:
			p, err := msg.GetParamsData()
			if err != nil {
				continue
			}
			c.params.Store(p)
			c.log.Debug("params received", "version", p.Version)

		case protocol.TypePong:
			if pong, err := msg.GetPongData(); err == nil {
				c.latency.Store(pong.LatencyMs)
			}
		}
	}
}

// send writes one message. Safe for concurrent use.
func (c *Client) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// SendState sends a state without waiting for the answer and returns its
// sequence number.
func (c *Client) SendState(rs slip.RobotState) (uint64, error) {
	seq := c.seq.Add(1)
	msg, err := protocol.NewStateMessage(seq, rs)
	if err != nil {
		return 0, err
	}
	if err := c.send(msg); err != nil {
		return 0, fmt.Errorf("link: send state: %w", err)
	}
	return seq, nil
}

// Step sends rs and waits for the command answering it. Commands for older
// states are discarded.
func (c *Client) Step(ctx context.Context, rs slip.RobotState) (slip.Output, error) {
	seq, err := c.SendState(rs)
	if err != nil {
		return slip.Output{}, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case cmd := <-c.commands:
			if cmd.Seq == seq {
				if !cmd.Output.Zero() {
					c.disabled.Store(false)
				}
				return cmd.Output, nil
			}
		case <-timer.C:
			return slip.Output{}, fmt.Errorf("%w: seq %d", ErrTimeout, seq)
		case <-c.done:
			return slip.Output{}, ErrClosed
		case <-ctx.Done():
			return slip.Output{}, ctx.Err()
		}
	}
}

// Ping sends a ping; the round trip is available from Latency once the pong
// arrives.
func (c *Client) Ping(id string) error {
	msg, err := protocol.NewPingMessage(id)
	if err != nil {
		return err
	}
	return c.send(msg)
}

// Latency returns the last measured ping round trip.
func (c *Client) Latency() time.Duration {
	return time.Duration(c.latency.Load()) * time.Millisecond
}

// Params returns the last parameters announced by the controller, or nil.
func (c *Client) Params() *protocol.ParamsData {
	return c.params.Load()
}

// Disabled reports whether the controller has sent a shutdown command that no
// later command superseded.
func (c *Client) Disabled() bool {
	return c.disabled.Load()
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.wsMu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.wsMu.Unlock()
	return c.ws.Close()
}
