package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxhollow/voxqueue-api/internal/events"
)

// ObserverRegistry is the queue surface the websocket endpoint needs.
type ObserverRegistry interface {
	RegisterObserver(id string, sink events.Sink)
	DeregisterObserver(id string)
}

// ObserverHandler upgrades GET /api/ws connections and wires each one up
// as an observer sink for the duration of the connection.
type ObserverHandler struct {
	registry ObserverRegistry
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewObserverHandler creates a new ObserverHandler.
func NewObserverHandler(registry ObserverRegistry, logger *slog.Logger) *ObserverHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ObserverHandler")
	}

	return &ObserverHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.With(slog.String("component", "observer_handler")),
	}
}

// Serve handles GET /api/ws requests. The connection receives every
// broadcast lifecycle event until the client disconnects.
func (h *ObserverHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	observerID := uuid.New().String()
	sink := &wsSink{conn: conn}

	h.registry.RegisterObserver(observerID, sink)
	h.logger.Info("observer connected", "observer_id", observerID)

	defer func() {
		h.registry.DeregisterObserver(observerID)
		if err := conn.Close(); err != nil {
			h.logger.Debug("failed to close observer connection", "error", err)
		}
		h.logger.Info("observer disconnected", "observer_id", observerID)
	}()

	// Drain the connection: inbound messages are ignored, but the read
	// loop is what detects the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// wsSink adapts a websocket connection to the events.Sink interface.
// Gorilla connections allow one concurrent writer, so sends are
// serialized with a mutex.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Send(message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, message)
}
