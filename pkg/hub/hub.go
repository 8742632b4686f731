package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	hlog "github.com/teslashibe/go-hopper/internal/log"
	"github.com/teslashibe/go-hopper/pkg/slip"
)

// Hub owns the subscriber set. All membership changes and fan-out happen on
// the Run goroutine.
type Hub struct {
	name string
	log  *slog.Logger

	subs map[*Subscriber]struct{}
	mu   sync.RWMutex // Guards subs for SubscriberCount

	records    chan slip.Record // From the control cycle, encoded by Run
	frames     chan []byte      // Pre-encoded announcements
	register   chan *Subscriber
	unregister chan *Subscriber
	done       chan struct{} // Closed when Run returns

	every     uint64 // Forward one record in every
	published atomic.Uint64
	dropped   atomic.Uint64
	running   atomic.Bool
}

// New creates a hub that forwards one in every `every` published records.
// every <= 1 forwards all of them.
func New(name string, every int) *Hub {
	if every < 1 {
		every = 1
	}
	return &Hub{
		name:       name,
		log:        hlog.With("hub", name),
		subs:       make(map[*Subscriber]struct{}),
		records:    make(chan slip.Record, queueSize),
		frames:     make(chan []byte, 16),
		register:   make(chan *Subscriber),
		unregister: make(chan *Subscriber),
		done:       make(chan struct{}),
		every:      uint64(every),
	}
}

// Run serves the hub until ctx is cancelled, then closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.subs {
				h.remove(s)
			}
			h.mu.Unlock()
			close(h.done)
			return

		case s := <-h.register:
			h.mu.Lock()
			h.subs[s] = struct{}{}
			n := len(h.subs)
			h.mu.Unlock()
			h.log.Info("subscriber connected", "subscribers", n)

		case s := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subs[s]; ok {
				h.remove(s)
			}
			n := len(h.subs)
			h.mu.Unlock()
			h.log.Info("subscriber disconnected", "subscribers", n)

		case rec := <-h.records:
			frame, err := encodeRecord(h.name, rec)
			if err != nil {
				h.log.Warn("encode record failed", "error", err)
				continue
			}
			h.fanOut(frame)

		case frame := <-h.frames:
			h.fanOut(frame)
		}
	}
}

// remove closes a subscriber's queue. Callers hold mu.
func (h *Hub) remove(s *Subscriber) {
	delete(h.subs, s)
	close(s.queue)
}

// fanOut queues frame on every subscriber, dropping those whose queue is full.
func (h *Hub) fanOut(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		select {
		case s.queue <- frame:
		default:
			h.remove(s)
			h.log.Warn("dropped slow subscriber")
		}
	}
}

// Publish implements host.Publisher. It never blocks: when the hub is busy
// the record is dropped and counted.
func (h *Hub) Publish(rec slip.Record) {
	n := h.published.Add(1)
	if (n-1)%h.every != 0 {
		return
	}
	select {
	case h.records <- rec:
	default:
		h.dropped.Add(1)
	}
}

// Announce sends a non-record frame, such as a params change, to every
// subscriber. Announcements are not decimated but are dropped when the hub
// is busy.
func (h *Hub) Announce(kind Kind, data any) error {
	frame, err := json.Marshal(Frame{Kind: kind, Source: h.name, Data: data})
	if err != nil {
		return err
	}
	select {
	case h.frames <- frame:
	default:
		h.dropped.Add(1)
		h.log.Debug("announce queue full", "kind", kind)
	}
	return nil
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns the number of records and announcements dropped because
// the hub was busy.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
