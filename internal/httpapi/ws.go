package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"roomcast/internal/connection"
	"roomcast/internal/router"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// wsChannel adapts a gorilla websocket connection to connection.Channel.
// WriteFrame is only ever called from the connection's delivery loop;
// Close and the ping ticker use WriteControl, which gorilla allows
// concurrently with writes.
type wsChannel struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (c *wsChannel) WriteFrame(p []byte) error {
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, p)
}

func (c *wsChannel) Close() error {
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	return c.conn.Close()
}

// inboundFrame is a client-to-server chat frame. An empty room means the
// connection's current room.
type inboundFrame struct {
	Message string `json:"message"`
	Room    string `json:"room"`
}

func ackFrame(at time.Time) router.Frame {
	data, _ := json.Marshal(struct {
		Type   string    `json:"type"`
		Status string    `json:"status"`
		At     time.Time `json:"timestamp"`
	}{Type: "ack", Status: "sent", At: at.UTC()})
	return router.Frame{Data: data}
}

func errorFrame(detail string) router.Frame {
	data, _ := json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{Type: "error", Message: detail})
	return router.Frame{Data: data}
}

// ChatHandler upgrades /chat/{user_id}?room=R to a websocket, registers
// the connection and runs the read pump until the peer goes away.
func (s *Server) ChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimPrefix(r.URL.Path, "/chat/")
	if userID == "" || strings.Contains(userID, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing user id", r.URL.Path)
		return
	}
	room := strings.TrimSpace(r.URL.Query().Get("room"))

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}

	ch := &wsChannel{conn: ws, writeTimeout: s.cfg.Chat.WriteTimeout}
	c, err := s.reg.Register(userID, room, ch)
	if err != nil {
		s.logger.Warn("websocket register failed", "user_id", userID, "error", err)
		_ = ch.Close()
		return
	}

	s.logger.Info("websocket connected", "user_id", userID, "room", c.Room())
	s.readPump(r.Context(), ws, c)
	s.logger.Info("websocket disconnected", "user_id", userID)
}

// readPump consumes client frames until the socket errors or closes,
// then tears the connection down. Outbound traffic is the delivery
// loop's job; the pump only enqueues acks and error notices.
func (s *Server) readPump(ctx context.Context, ws *websocket.Conn, c *connection.Conn) {
	defer s.reg.Teardown(c)

	if s.cfg.Chat.ReadLimit > 0 {
		ws.SetReadLimit(s.cfg.Chat.ReadLimit)
	}
	if pong := s.cfg.Chat.PongTimeout; pong > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(pong))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pong))
		})
	}

	if s.cfg.Chat.PingInterval > 0 {
		stop := make(chan struct{})
		defer close(stop)
		go s.pingLoop(ws, c, stop)
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read failed", "user_id", c.UserID(), "error", err)
			}
			return
		}
		s.handleInbound(ctx, c, data)
	}
}

// pingLoop keeps the connection alive. A failed ping means the peer is
// gone; the read deadline will fire and end the pump.
func (s *Server) pingLoop(ws *websocket.Conn, c *connection.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.Chat.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.Chat.WriteTimeout)
			if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-stop:
			return
		case <-c.Done():
			return
		}
	}
}

// handleInbound publishes one client frame and enqueues the ack, or an
// error notice when the frame is rejected.
func (s *Server) handleInbound(ctx context.Context, c *connection.Conn, data []byte) {
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		c.Deliver(errorFrame("Invalid JSON format"))
		return
	}

	room := in.Room
	if room == "" {
		room = c.Room()
	}

	msg, err := s.gw.Publish(ctx, c.UserID(), room, in.Message)
	if err != nil {
		c.Deliver(errorFrame(err.Error()))
		return
	}
	c.Deliver(ackFrame(msg.At))
}
