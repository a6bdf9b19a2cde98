package monitor

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/voxlab/callbot/internal/model/conversation"
	conversationsvc "github.com/voxlab/callbot/internal/service/conversation"
)

const (
	pollInterval = time.Second
	pingInterval = 54 * time.Second
	readTimeout  = 60 * time.Second
)

// Handler streams live call transcripts to dashboard clients over WebSocket.
type Handler struct {
	store    *conversationsvc.Store
	upgrader websocket.Upgrader
}

// New creates the monitor handler.
func New(store *conversationsvc.Store) *Handler {
	return &Handler{
		store: store,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the monitor WebSocket routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/monitor/{callSID}", h.handleMonitor)
}

type outgoingMessage struct {
	Type      string `json:"type"`
	CallSID   string `json:"callSid"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// monitorConn serializes writes: gorilla/websocket allows only one concurrent
// writer, and the poll loop and ping loop share the connection.
type monitorConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *monitorConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *monitorConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// handleMonitor upgrades the connection and pushes transcript growth for one
// call until the call ends or the client disconnects.
func (h *Handler) handleMonitor(w http.ResponseWriter, r *http.Request) {
	callSID := chi.URLParam(r, "callSID")
	if callSID == "" {
		http.Error(w, "callSID is required", http.StatusBadRequest)
		return
	}

	sess, err := h.store.Get(r.Context(), callSID)
	if err != nil {
		http.Error(w, "call not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[monitor] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[monitor] new connection for call: %s", callSID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	mc := &monitorConn{conn: conn}

	// The monitor is one-way; the read pump only notices disconnects.
	go h.readLoop(cancel, conn)
	go h.pingLoop(ctx, mc)

	h.send(mc, callSID, "connected", map[string]any{
		"from":    sess.From,
		"to":      sess.To,
		"persona": sess.PersonaName,
	})

	sent := h.pushTurns(mc, callSID, sess.Turns, 0)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[monitor] closing connection for call: %s", callSID)
			return
		case <-ticker.C:
			transcript, err := h.store.Transcript(ctx, callSID)
			// A transcript shorter than what was already pushed means the
			// call id was ended and reused for a new session.
			if err != nil || len(transcript) < sent {
				h.send(mc, callSID, "ended", nil)
				return
			}
			sent = h.pushTurns(mc, callSID, transcript, sent)
		}
	}
}

func (h *Handler) pushTurns(mc *monitorConn, callSID string, transcript []conversation.Turn, sent int) int {
	if sent > len(transcript) {
		sent = len(transcript)
	}
	for _, turn := range transcript[sent:] {
		h.send(mc, callSID, "turn", turn)
	}
	return len(transcript)
}

func (h *Handler) send(mc *monitorConn, callSID, msgType string, data any) {
	msg := outgoingMessage{
		Type:      msgType,
		CallSID:   callSID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := mc.writeJSON(msg); err != nil {
		log.Printf("[monitor] write failed: %v", err)
	}
}

func (h *Handler) readLoop(cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[monitor] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

func (h *Handler) pingLoop(ctx context.Context, mc *monitorConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := mc.ping(); err != nil {
				return
			}
		}
	}
}
