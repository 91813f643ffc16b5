package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tunables
// ──────────────────────────────────────────────────────────────────────────────

const (
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 35 * time.Second // must be > pingInterval
	maxMessageSize = 512              // bytes; clients only send pongs
	sendBufferSize = 256              // messages in each client send channel
)

// Authenticator resolves the ?token= access token of a connecting client.
// Implemented by service.AuthService.
type Authenticator interface {
	Authenticate(token string) (domain.Identity, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// Client
// ──────────────────────────────────────────────────────────────────────────────

// Client represents one connected WebSocket endpoint.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte // buffered outbound message queue
	userID uuid.UUID   // zero-value = anonymous
}

type direct struct {
	userID uuid.UUID
	data   []byte
}

// ──────────────────────────────────────────────────────────────────────────────
// Hub
// ──────────────────────────────────────────────────────────────────────────────

// Hub maintains the set of active clients and routes broadcast and per-user
// messages. Run must be started before ServeWs is used.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	// channels consumed by Run()
	broadcast  chan []byte
	unicast    chan direct
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run returns

	// nil makes every connection anonymous
	auth Authenticator

	upgrader websocket.Upgrader
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewHub creates a Hub ready to be started with Run().
func NewHub(auth Authenticator, allowedOrigins []string, log *zap.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 512),
		unicast:    make(chan direct, 512),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		auth:       auth,
		log:        log.With(zap.String("component", "ws")),
		metrics:    m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true // dev mode: allow all
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Run: hub event loop
// ──────────────────────────────────────────────────────────────────────────────

// Run processes registration, unregistration and outbound messages until ctx
// is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.WSConnections(1)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.WSConnections(-1)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				// A full buffer drops the message for that client only.
				select {
				case client.send <- message:
				default:
				}
			}
			h.mu.RUnlock()

		case d := <-h.unicast:
			h.mu.RLock()
			for client := range h.clients {
				if client.userID != d.userID {
					continue
				}
				select {
				case client.send <- d.data:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ConnectedCount returns the current number of connected clients.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ──────────────────────────────────────────────────────────────────────────────
// ServeWs: HTTP → WebSocket upgrade
// ──────────────────────────────────────────────────────────────────────────────

// ServeWs upgrades an HTTP request to a WebSocket connection, optionally
// authenticates the caller via an access token in the ?token= query
// parameter, and starts the read/write pumps.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	if token := r.URL.Query().Get("token"); token != "" && h.auth != nil {
		// An invalid token downgrades the session to anonymous.
		if id, err := h.auth.Authenticate(token); err == nil {
			client.userID = id.UserID
		} else {
			h.SendError(client, "invalid_token", "token rejected; connected anonymously")
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ──────────────────────────────────────────────────────────────────────────────
// Client pumps
// ──────────────────────────────────────────────────────────────────────────────

// writePump drains the client's send channel and writes messages to the
// WebSocket connection. It also sends ping frames every pingInterval.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				// Hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only handles pongs; the protocol is server-push. When the
// connection drops the client is unregistered.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("unexpected close", zap.Stringer("user_id", c.userID), zap.Error(err))
			}
			return
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Push helpers: implement service.Broadcaster
// ──────────────────────────────────────────────────────────────────────────────

// BroadcastOdds pushes the current quotes of an event to everyone.
func (h *Hub) BroadcastOdds(eventID uuid.UUID, outcomes []*domain.Outcome) {
	quotes := make([]OddsQuote, 0, len(outcomes))
	for _, o := range outcomes {
		quotes = append(quotes, OddsQuote{OutcomeID: o.ID, Odds: o.Odds})
	}
	h.broadcastJSON(OddsUpdateMessage{
		Type:      MsgTypeOddsUpdate,
		EventID:   eventID,
		Quotes:    quotes,
		Timestamp: time.Now().UTC(),
	})
}

// BroadcastEvent pushes an event lifecycle change to everyone.
func (h *Hub) BroadcastEvent(e *domain.Event) {
	var t MsgType
	switch e.Status {
	case domain.EventCompleted:
		t = MsgTypeEventResolved
	case domain.EventCancelled:
		t = MsgTypeEventCanceled
	default:
		t = MsgTypeEventCreated
	}
	h.broadcastJSON(EventMessage{
		Type:      t,
		EventID:   e.ID,
		Name:      e.Name,
		Status:    e.Status,
		HomeGoals: e.HomeGoals,
		AwayGoals: e.AwayGoals,
		Timestamp: time.Now().UTC(),
	})
}

// SendBetSettled pushes a settlement change to the bet owner's sessions.
func (h *Hub) SendBetSettled(userID, betID uuid.UUID, status domain.BetStatus, winnings *decimal.Decimal) {
	h.SendToUser(userID, BetSettledMessage{
		Type:      MsgTypeBetSettled,
		BetID:     betID,
		Status:    status,
		Winnings:  winnings,
		Timestamp: time.Now().UTC(),
	})
}

// SendToUser marshals v and queues it for every session of userID.
func (h *Hub) SendToUser(userID uuid.UUID, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("marshal error", zap.Error(err))
		return
	}
	select {
	case h.unicast <- direct{userID: userID, data: data}:
	default:
		h.log.Warn("unicast channel full, message dropped", zap.Stringer("user_id", userID))
	}
}

// broadcastJSON is the common marshalling path.
func (h *Hub) broadcastJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("marshal error", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("broadcast channel full, message dropped")
	}
}

// SendError writes an error message directly to one client's send channel.
func (h *Hub) SendError(client *Client, code, message string) {
	data, err := json.Marshal(ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	})
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}
