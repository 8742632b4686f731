package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// Write deadline per frame
	writeTimeout = 5 * time.Second

	// A subscriber that misses pongs for this long is considered gone
	idleTimeout = 30 * time.Second
	keepalive   = idleTimeout / 2

	// Subscribers only send control frames
	readLimit = 4 * 1024

	// Per-subscriber queue, about a quarter second of undecimated 1 kHz records
	queueSize = 256
)

// Subscriber is one telemetry websocket connection.
type Subscriber struct {
	hub   *Hub
	conn  *websocket.Conn
	queue chan []byte
}

// Subscribe registers conn with the hub. It returns nil once the hub has
// stopped.
func Subscribe(h *Hub, conn *websocket.Conn) *Subscriber {
	s := &Subscriber{
		hub:   h,
		conn:  conn,
		queue: make(chan []byte, queueSize),
	}
	select {
	case h.register <- s:
		return s
	case <-h.done:
		return nil
	}
}

// Serve streams frames until the connection drops or the hub stops. It must
// be called from the websocket handler, which owns the connection.
func (s *Subscriber) Serve() {
	go s.write()
	s.read()
}

// read discards inbound data; it exists to process pongs and notice the
// peer going away.
func (s *Subscriber) read() {
	defer func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(readLimit)
	s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// write is the only goroutine writing to the connection.
func (s *Subscriber) write() {
	ping := time.NewTicker(keepalive)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.queue:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Dropped by the hub
				s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
