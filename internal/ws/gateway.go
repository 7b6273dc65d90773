// Package ws is the WebSocket gateway: it binds one authenticated user to
// one connection and translates wire events into core operations. Framing
// is a thin envelope; all business logic lives in the engine.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/api/middleware"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/engine"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/events"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Gateway upgrades HTTP requests to WebSocket connections and pumps events
// between clients and the engine.
type Gateway struct {
	engine   *engine.Engine
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewGateway creates a Gateway.
func NewGateway(eng *engine.Engine, logger zerolog.Logger) *Gateway {
	return &Gateway{
		engine: eng,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from a separate origin; session
			// auth happens before the upgrade.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles the WebSocket upgrade. The connection's user identity
// is established by the session middleware before any event is accepted.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := &Conn{
		userID: user.ID,
		ws:     ws,
		send:   make(chan outboundFrame, sendBufferSize),
	}
	g.engine.Dispatcher().Register(conn)
	metrics.Connections.Inc()

	go conn.writePump()
	g.readPump(r, conn)
}

// envelope is the wire frame for inbound events.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// readPump decodes inbound envelopes and dispatches them to the engine
// until the connection drops.
func (g *Gateway) readPump(r *http.Request, conn *Conn) {
	defer func() {
		g.engine.Dispatcher().Unregister(conn)
		g.engine.Disconnect(context.Background(), conn)
		conn.close()
		metrics.Connections.Dec()
	}()

	conn.ws.SetReadLimit(maxMessageSize)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug().Err(err).Str("user", conn.userID).Msg("websocket closed unexpectedly")
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			g.logger.Warn().Err(err).Str("user", conn.userID).Msg("malformed event frame")
			continue
		}
		g.handle(context.Background(), conn, env)
	}
}

// handle routes one inbound event. A mutation failure aborts that single
// operation: it is logged here, and no error frame goes back to the client.
func (g *Gateway) handle(ctx context.Context, conn *Conn, env envelope) {
	var err error

	switch env.Event {
	case "join":
		err = g.engine.Join(ctx, conn.userID, conn)

	case "sendMessage":
		var req engine.SendRequest
		if err = json.Unmarshal(env.Data, &req); err != nil {
			break
		}
		// The sender is always the connection's bound identity.
		req.SenderID = conn.userID
		_, err = g.engine.SendMessage(ctx, req)

	case "messageRead":
		var p struct {
			MessageID string `json:"messageId"`
		}
		if err = json.Unmarshal(env.Data, &p); err != nil {
			break
		}
		err = g.engine.MessageRead(ctx, p.MessageID, conn.userID)

	case "joinChat":
		var p struct {
			ChatID string `json:"chatId"`
		}
		if err = json.Unmarshal(env.Data, &p); err != nil {
			break
		}
		g.engine.JoinChat(conn, p.ChatID)

	case "typing":
		var p struct {
			ChatID string `json:"chatId"`
		}
		if err = json.Unmarshal(env.Data, &p); err != nil {
			break
		}
		g.engine.Typing(conn, p.ChatID, conn.userID)

	case "logout":
		g.engine.Logout(ctx, conn.userID)

	case "deleteMessage":
		var p struct {
			MessageID string `json:"messageId"`
		}
		if err = json.Unmarshal(env.Data, &p); err != nil {
			break
		}
		_, err = g.engine.DeleteMessage(ctx, p.MessageID, conn.userID)

	case "undoDeleteMessage":
		var p struct {
			MessageID string `json:"messageId"`
		}
		if err = json.Unmarshal(env.Data, &p); err != nil {
			break
		}
		_, err = g.engine.UndoDeleteMessage(ctx, p.MessageID, conn.userID)

	default:
		g.logger.Warn().Str("event", env.Event).Str("user", conn.userID).Msg("unknown event")
		return
	}

	if err != nil {
		g.logger.Warn().Err(err).Str("event", env.Event).Str("user", conn.userID).Msg("event handling failed")
	}
}

// outboundFrame is a serialized event ready for the write pump.
type outboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Conn is one live WebSocket connection bound to a user. Writes go through
// a buffered channel so event dispatch never blocks on a slow client; a
// full buffer drops the event, consistent with no-queueing delivery.
type Conn struct {
	userID string
	ws     *websocket.Conn
	send   chan outboundFrame

	mu     sync.Mutex
	closed bool
}

var (
	errSendBufferFull = errors.New("ws: send buffer full")
	errConnClosed     = errors.New("ws: connection closed")
)

// UserID returns the user bound to this connection.
func (c *Conn) UserID() string { return c.userID }

// Send implements events.Conn.
func (c *Conn) Send(ev events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.send <- outboundFrame{Event: ev.EventName(), Data: ev}:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump serializes all writes to the socket and keeps the connection
// alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
