package session

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

// Event is pushed to every websocket subscribed to a session.
type Event struct {
	Type      string   `json:"type"`
	SessionID string   `json:"sessionId"`
	Session   *Session `json:"session,omitempty"`
}

// Hub fans session events out to websocket subscribers, grouped by session id.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]*subscriber
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

type subscriber struct {
	conn *websocket.Conn
	id   string
	send chan []byte
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[string]*subscriber),
		upgrader: websocket.Upgrader{
			// 모든 origin 허용
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log.With().Str("module", "ws").Logger(),
	}
}

// Publish sends ev to all subscribers of its session. Slow subscribers whose
// buffer is full are dropped.
func (h *Hub) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Msg("Error marshaling event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.rooms[ev.SessionID] {
		select {
		case sub.send <- data:
		default:
			close(sub.send)
			delete(h.rooms[ev.SessionID], id)
			h.log.Warn().Str("session", ev.SessionID).Str("subscriber", id).Msg("⚠️  Dropped slow subscriber")
		}
	}
	if len(h.rooms[ev.SessionID]) == 0 {
		delete(h.rooms, ev.SessionID)
	}
}

// Subscribers returns the number of live subscribers for a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// Stats returns the number of sessions with subscribers and the total
// number of subscribers.
func (h *Hub) Stats() (rooms, subscribers int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, room := range h.rooms {
		subscribers += len(room)
	}
	return len(h.rooms), subscribers
}

// ServeWS upgrades the request and subscribes it to ?session=<id>.
// Validation of the id is left to the caller.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string, initial *Session) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	sub := &subscriber{conn: conn, id: uuid.NewString(), send: make(chan []byte, sendBufferSize)}
	h.add(sessionID, sub)
	h.log.Info().Str("session", sessionID).Str("subscriber", sub.id).Msg("👤 Subscriber joined")

	go sub.writePump(h.log)
	if initial != nil {
		h.Publish(Event{Type: "session_state", SessionID: sessionID, Session: initial})
	}
	go h.readPump(sessionID, sub)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID, room := range h.rooms {
		for _, sub := range room {
			close(sub.send)
		}
		delete(h.rooms, sessionID)
	}
}

func (h *Hub) add(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[string]*subscriber)
		h.rooms[sessionID] = room
	}
	room[sub.id] = sub
}

func (h *Hub) remove(sessionID, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[sessionID]
	if sub, ok := room[subID]; ok {
		close(sub.send)
		delete(room, subID)
		h.log.Info().Str("session", sessionID).Str("subscriber", subID).Int("remaining", len(room)).Msg("👋 Subscriber left")
	}
	if len(room) == 0 {
		delete(h.rooms, sessionID)
	}
}

// readPump only watches for the close; subscribers never send commands.
func (h *Hub) readPump(sessionID string, sub *subscriber) {
	defer func() {
		h.remove(sessionID, sub.id)
		sub.conn.Close()
	}()
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
	}
}

func (s *subscriber) writePump(log zerolog.Logger) {
	defer s.conn.Close()
	for message := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Warn().Err(err).Msg("WebSocket write error")
			return
		}
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
