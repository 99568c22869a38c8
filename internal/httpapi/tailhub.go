package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bytehotd/bytehotd/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// tailHub fans every journaled event out to connected websocket
// clients, mirroring journal.Writer.Tail's drop-on-full-buffer
// semantics per client rather than blocking the journal.
type tailHub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]chan events.DomainEvent
}

func newTailHub(logger *slog.Logger) *tailHub {
	return &tailHub{
		logger:  logger.With("component", "journal_tail_hub"),
		clients: make(map[*websocket.Conn]chan events.DomainEvent),
	}
}

// run drains source and rebroadcasts to every registered client until
// ctx is cancelled (or source closes, which journal.Writer.Tail does
// on the same ctx).
func (h *tailHub) run(ctx context.Context, source <-chan events.DomainEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-source:
			if !ok {
				return
			}
			h.broadcast(event)
		}
	}
}

func (h *tailHub) broadcast(event events.DomainEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
			h.logger.Warn("journal tail client buffer full, dropping event", "event_id", event.EventID)
		}
	}
}

func (h *tailHub) register(conn *websocket.Conn) chan events.DomainEvent {
	ch := make(chan events.DomainEvent, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *tailHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(ch)
	}
	h.mu.Unlock()
}

// handleJournalTailWS upgrades to a websocket and streams every event
// appended from connection time on.
//
// @Summary Stream the journal tail over a websocket
// @Router /journal/tail/ws [get]
func (s *Server) handleJournalTailWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("journal tail websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.hub.register(conn)
	defer s.hub.unregister(conn)

	for event := range ch {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			s.logger.Debug("journal tail websocket client disconnected", "error", err)
			return
		}
	}
}
