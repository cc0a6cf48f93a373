package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 25 * time.Second
	// wsSendBuffer is how many messages may queue for a slow client before
	// newer ones are dropped.
	wsSendBuffer = 8
)

// wsClient is one open summary stream. Only its writer goroutine touches the
// connection for writes; everyone else queues on send.
type wsClient struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

func newWSClient(userID string, conn *websocket.Conn) *wsClient {
	return &wsClient{userID: userID, conn: conn, send: make(chan []byte, wsSendBuffer)}
}

// enqueue queues msg without blocking and reports whether it fit.
func (c *wsClient) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// writeLoop drains send and keeps the connection alive until done closes or
// a write fails.
func (c *wsClient) writeLoop(done <-chan struct{}) {
	t := time.NewTicker(wsPingInterval)
	defer t.Stop()
	for {
		var err error
		select {
		case <-done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			err = c.conn.WriteMessage(websocket.TextMessage, msg)
		case <-t.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			err = c.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			log.Debug().Err(err).Str("user_id", c.userID).Msg("[realtime] write failed")
			// Closing ends the read loop, which unregisters the client.
			_ = c.conn.Close()
			return
		}
	}
}

// summaryHub fans rebuilt daily summaries out to each user's open streams.
type summaryHub struct {
	mu      sync.RWMutex
	clients map[string]map[*wsClient]struct{}
}

func newSummaryHub() *summaryHub {
	return &summaryHub{clients: make(map[string]map[*wsClient]struct{})}
}

func (h *summaryHub) register(c *wsClient) {
	h.mu.Lock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*wsClient]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.mu.Unlock()
}

func (h *summaryHub) unregister(c *wsClient) {
	h.mu.Lock()
	if set := h.clients[c.userID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

// count returns the number of open streams for userID.
func (h *summaryHub) count(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// summaryMessage is sent as {"type":"summary","summary":{...}} or, once the
// profile is cleared, {"type":"cleared"}.
type summaryMessage struct {
	Type    string        `json:"type"`
	Summary *DailySummary `json:"summary,omitempty"`
}

// publish queues s for every stream of userID.
func (h *summaryHub) publish(userID string, s DailySummary) {
	h.broadcast(userID, summaryMessage{Type: "summary", Summary: &s})
}

// publishCleared tells userID's streams that there is no summary anymore.
func (h *summaryHub) publishCleared(userID string) {
	h.broadcast(userID, summaryMessage{Type: "cleared"})
}

// broadcast never blocks on a client: a stream whose buffer is full misses
// the message and catches up on the next one.
func (h *summaryHub) broadcast(userID string, m summaryMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.clients[userID]
	if len(set) == 0 {
		return
	}
	msg, err := json.Marshal(m)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("[realtime] marshal message")
		return
	}
	for c := range set {
		if !c.enqueue(msg) {
			log.Warn().Str("user_id", userID).Str("type", m.Type).Msg("[realtime] client too slow, message dropped")
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamSummary handles GET /api/summary/ws. It sends the current summary
// right away, then every rebuilt summary until the client disconnects.
func (h *Handler) streamSummary(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("[realtime] upgrade failed")
		return
	}
	cl := newWSClient(sess.userID, conn)
	h.hub.register(cl)

	if s, err := sess.Summary(); err == nil {
		if msg, err := json.Marshal(summaryMessage{Type: "summary", Summary: &s}); err == nil {
			cl.enqueue(msg)
		}
	}

	done := make(chan struct{})
	go cl.writeLoop(done)

	// Read loop ends on client close or error.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			close(done)
			h.hub.unregister(cl)
			return
		}
	}
}
