package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// turnEvent is pushed to every connected browser after a completed chat turn
// so the avatar can start its mouth animation as the audio plays.
type turnEvent struct {
	Type     string `json:"type"`
	Response string `json:"response"`
	AudioURL string `json:"audio_url,omitempty"`
}

type eventHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	log   zerolog.Logger
}

func newEventHub(log zerolog.Logger) *eventHub {
	return &eventHub{
		conns: make(map[*websocket.Conn]struct{}),
		log:   log,
	}
}

func (h *eventHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *eventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// Broadcast writes the event to every subscriber. A failing connection is
// dropped; writes stay under the hub lock so each socket sees one writer.
func (h *eventHub) Broadcast(event any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			h.log.Debug().Err(err).Msg("dropping event subscriber")
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.hub.add(conn)
	s.metrics.SessionEvents.WithLabelValues("events_connected").Inc()
	defer func() {
		s.hub.remove(conn)
		conn.Close()
		s.metrics.SessionEvents.WithLabelValues("events_disconnected").Inc()
	}()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	// The feed is one-way; drain client frames until the socket closes.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
