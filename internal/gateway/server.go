package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agentplane/core/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 45 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// MessageInjector accepts an inbound envelope for routing onto the bus.
// *bus.Bus implements this; tests supply a fake.
type MessageInjector interface {
	InjectMessage(env *models.Envelope) error
}

// Server accepts WebSocket upgrades at /ws, authenticates connections,
// maintains the session table, and forwards inbound envelopes to the bus.
type Server struct {
	Bus            MessageInjector
	Router         *ResponseRouter
	Resolver       IdentityResolver
	AllowAnonymous bool
	Logger         *slog.Logger

	upgrader websocket.Upgrader
}

// NewServer builds a Server. Pass a nil logger for slog.Default().
func NewServer(b MessageInjector, resolver IdentityResolver, allowAnonymous bool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Bus:            b,
		Router:         NewResponseRouter(),
		Resolver:       resolver,
		AllowAnonymous: allowAnonymous,
		Logger:         logger.With("component", "gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements http.Handler for the /ws route.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := ExtractToken(r)
	userID, ok := ResolveIdentity(token, s.Resolver, s.AllowAnonymous)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sessionID := uuid.NewString()
	wc := &wsConn{conn: conn, send: make(chan Frame, 64), shutdown: make(chan string, 1)}
	s.Router.RegisterSession(sessionID, wc)

	s.Logger.Info("session opened", "sessionId", sessionID, "userId", userID)

	go wc.writeLoop()
	s.readLoop(sessionID, wc)
}

func (s *Server) readLoop(sessionID string, wc *wsConn) {
	defer func() {
		s.Router.CloseSession(sessionID)
		wc.Close()
		s.Logger.Info("session closed", "sessionId", sessionID)
	}()

	wc.conn.SetReadDeadline(time.Now().Add(pongWait))
	wc.conn.SetPongHandler(func(string) error {
		wc.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := wc.conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := ParseInbound(raw)
		if err != nil {
			wc.send <- InvalidFormatFrame()
			continue
		}

		if env.ReplyTo != "" {
			s.Router.Track(env.EffectiveCorrelationID(), sessionID)
		}

		if err := s.Bus.InjectMessage(env); err != nil {
			wc.send <- Frame{Error: err.Error()}
		}
	}
}

// wsConn wraps a gorilla/websocket connection with a buffered write
// loop, so concurrent SendJSON calls never race the single allowed
// writer goroutine per connection.
type wsConn struct {
	conn     *websocket.Conn
	send     chan Frame
	shutdown chan string
}

// SendJSON implements Sender.
func (c *wsConn) SendJSON(frame Frame) error {
	select {
	case c.send <- frame:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case reason := <-c.shutdown:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
			c.conn.WriteMessage(websocket.CloseMessage, msg)
			return
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsConn) Close() {
	close(c.send)
	c.conn.Close()
}

// CloseGoingAway implements Sender: it signals writeLoop to send a 1001
// close control frame instead of queueing it behind pending frames.
func (c *wsConn) CloseGoingAway(reason string) error {
	select {
	case c.shutdown <- reason:
	default:
	}
	return nil
}

var _ Sender = (*wsConn)(nil)

// Shutdown closes every live session with a going-away frame, used by
// the bootstrap's graceful teardown.
func (s *Server) Shutdown(reason string) {
	s.Router.Shutdown(reason)
}
