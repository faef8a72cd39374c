// Package events implements the progress-event surface (spec.md §6.6):
// a consumer-chosen transport fed by a single in-process channel the
// Step Coordinator publishes to. The channel is the contract; this
// package also ships one concrete transport (a websocket broadcaster)
// grounded on
// _examples/jinterlante1206-AleutianLocal/services/orchestrator/handlers/websocket.go's
// upgrader/broadcast pattern, reshaped from a per-connection chat loop
// into a fan-out hub since progress events are server-push only.
package events

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Status enumerates the per-(phase, agent) lifecycle states (spec.md §6.6).
type Status string

const (
	StatusStarted   Status = "started"
	StatusProgress  Status = "progress"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Event is one progress notification (spec.md §6.6:
// "(timestamp, phase, agent, status, message)").
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Phase     string    `json:"phase"`
	Agent     string    `json:"agent"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
}

// Reporter is the callback channel the coordinator publishes through
// (spec.md §4.7 "Progress reporting"). Publish must never block the
// caller for long; implementations that fan out to slow consumers
// (e.g. Hub) buffer internally.
type Reporter interface {
	Publish(Event)
}

// ReporterFunc adapts a plain function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Publish(e Event) { f(e) }

// Noop discards every event; used when a caller doesn't care about
// progress and only wants the final result.
var Noop Reporter = ReporterFunc(func(Event) {})

// Hub fans out published events to every connected websocket client.
// One Hub typically backs one running analysis.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	logger  *slog.Logger
}

// NewHub returns an empty Hub ready to accept connections and publish events.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: map[*websocket.Conn]struct{}{}, logger: logger}
}

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// ServeHTTP upgrades the connection and registers it as a progress
// listener until the client disconnects. The connection is read-only
// from the client's perspective; any client message is ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("events: websocket upgrade failed", "error", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// Publish implements Reporter by broadcasting e as JSON to every
// connected client. A write failure drops that client rather than
// blocking the publisher.
func (h *Hub) Publish(e Event) {
	raw, err := json.Marshal(e)
	if err != nil {
		h.logger.Warn("events: marshal failed", "error", err)
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, raw); err != nil {
			h.remove(c)
		}
	}
}

// Recorder accumulates every published event in order, for tests and
// for the persisted execution_log (spec.md §7: "the final result
// always includes the full execution log").
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a snapshot of every event recorded so far, in publish order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Multi fans a single Publish call out to several Reporters, e.g. a
// Recorder for the execution log plus a Hub for live UI consumers.
type Multi []Reporter

func (m Multi) Publish(e Event) {
	for _, r := range m {
		if r != nil {
			r.Publish(e)
		}
	}
}
