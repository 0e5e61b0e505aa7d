package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

const (
	authTimeout    = 5 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	handlerTimeout = 10 * time.Second
	maxMessageSize = 8192
	sendBuffer     = 256
)

var errForbiddenTopic = errors.New("topic not allowed for this connection")

// Verifier turns a bearer credential into an identity
type Verifier interface {
	Verify(token string) (models.Identity, error)
}

// MessageHandler handles inbound events other than subscribe/unsubscribe. The
// returned value is sent back in the ack; an error is sent back in a nack.
type MessageHandler interface {
	HandleMessage(ctx context.Context, c *Client, event string, data json.RawMessage) (interface{}, error)
}

// TopicAuthorizer is implemented by handlers that let non-staff connections
// listen on some entity topics, such as the vehicle a caller crews.
type TopicAuthorizer interface {
	AuthorizeTopic(ctx context.Context, identity models.Identity, topic string) error
}

// Inbound is a message read from a connection. Token is only read from the
// first frame of a connection that did not present a credential on upgrade.
type Inbound struct {
	ID    string          `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Token string          `json:"token,omitempty"`
}

// Reply is the payload of an ack or nack
type Reply struct {
	ID    string      `json:"id"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// TopicRequest is the payload of subscribe and unsubscribe
type TopicRequest struct {
	Topics []string `json:"topics"`
}

// Client is one authenticated connection
type Client struct {
	ID       string
	Identity models.Identity
	conn     *websocket.Conn
	send     chan []byte
	topics   map[string]struct{}
}

// Gateway upgrades HTTP requests to event connections
type Gateway struct {
	hub      *Hub
	verifier Verifier
	handler  MessageHandler
	upgrader websocket.Upgrader

	pingInterval time.Duration
	pongWait     time.Duration
}

// NewGateway creates a gateway that accepts browser connections only from allowedOrigin
func NewGateway(hub *Hub, verifier Verifier, handler MessageHandler, allowedOrigin string) *Gateway {
	allowedOrigin = strings.TrimRight(allowedOrigin, "/")
	return &Gateway{
		hub:          hub,
		verifier:     verifier,
		handler:      handler,
		pingInterval: pingInterval,
		pongWait:     pongWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				return strings.TrimRight(origin, "/") == allowedOrigin
			},
		},
	}
}

// SetKeepalive changes how often connections are pinged and how long a silent
// connection is kept. ping must be shorter than pong.
func (g *Gateway) SetKeepalive(ping, pong time.Duration) {
	g.pingInterval, g.pongWait = ping, pong
}

// TokenFromRequest reads a bearer credential from the Authorization header or the token cookie
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return ""
}

// ServeHTTP handles the /ws endpoint
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade failed", "error", err)
		return
	}

	token := TokenFromRequest(r)
	if token == "" {
		_ = conn.SetReadDeadline(time.Now().Add(authTimeout))
		var first Inbound
		if err := conn.ReadJSON(&first); err != nil {
			reject(conn, "auth timeout")
			zap.S().Debugw("no credential received", "error", err)
			return
		}
		token = first.Token
	}

	identity, err := g.verifier.Verify(token)
	if err != nil {
		reject(conn, "invalid token")
		zap.S().Infow("rejected websocket connection", "error", err)
		return
	}

	c := &Client{
		ID:       uuid.New().String(),
		Identity: identity,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
	}

	g.hub.Register(c, RoleTopic(identity.Role), UserTopic(identity.ID))

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(NewEvent(EventAuthenticated, identity)); err != nil {
		g.hub.Unregister(c)
		_ = conn.Close()
		return
	}
	zap.S().Infow("websocket client connected",
		"connection", c.ID,
		"user", identity.ID,
		"role", identity.Role)

	go c.writePump(g.pingInterval)
	g.readPump(c)
}

func reject(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(writeWait))
	_ = conn.Close()
}

func (g *Gateway) readPump(c *Client) {
	defer func() {
		g.hub.Unregister(c)
		_ = c.conn.Close()
		zap.S().Infow("websocket client disconnected", "connection", c.ID, "user", c.Identity.ID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(g.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(g.pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.S().Warnw("websocket read error", "connection", c.ID, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(g.pongWait))

		var msg Inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			c.reply(EventNack, Reply{Error: "malformed message"})
			continue
		}

		data, err := g.dispatch(c, msg)
		switch {
		case err != nil && msg.ID != "":
			c.reply(EventNack, Reply{ID: msg.ID, Error: err.Error()})
		case err != nil:
			zap.S().Warnw("inbound event failed", "event", msg.Event, "connection", c.ID, "error", err)
		case msg.ID != "":
			c.reply(EventAck, Reply{ID: msg.ID, Data: data})
		}
	}
}

func (g *Gateway) dispatch(c *Client, msg Inbound) (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch msg.Event {
	case EventSubscribe:
		var req TopicRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return nil, errors.New("topics must be a list of strings")
		}
		for _, topic := range req.Topics {
			if !g.mayJoin(ctx, c, topic) {
				return nil, errForbiddenTopic
			}
		}
		g.hub.Subscribe(c, req.Topics...)
		return req, nil
	case EventUnsubscribe:
		var req TopicRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return nil, errors.New("topics must be a list of strings")
		}
		g.hub.Unsubscribe(c, req.Topics...)
		return req, nil
	}

	if g.handler == nil {
		return nil, errors.New("unknown event " + msg.Event)
	}
	return g.handler.HandleMessage(ctx, c, msg.Event, msg.Data)
}

// mayJoin reports whether the connection may listen on topic. Role and user
// rooms are open to their owners only. Entity topics are open to staff; other
// connections need the handler to authorize the topic.
func (g *Gateway) mayJoin(ctx context.Context, c *Client, topic string) bool {
	switch {
	case topic == RoleTopic(c.Identity.Role), topic == UserTopic(c.Identity.ID):
		return true
	case !isEntityTopic(topic):
		return false
	case c.Identity.Role.IsStaff():
		return true
	}
	authorizer, ok := g.handler.(TopicAuthorizer)
	if !ok {
		return false
	}
	return authorizer.AuthorizeTopic(ctx, c.Identity, topic) == nil
}

func isEntityTopic(topic string) bool {
	for _, prefix := range []string{"vehicle:", "request:"} {
		if strings.HasPrefix(topic, prefix) && len(topic) > len(prefix) {
			return true
		}
	}
	return false
}

func (c *Client) reply(name string, r Reply) {
	data, err := json.Marshal(NewEvent(name, r))
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		zap.S().Warnw("dropped reply for slow connection", "connection", c.ID, "id", r.ID)
	}
}

func (c *Client) writePump(ping time.Duration) {
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
