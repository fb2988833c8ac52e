// Package websocket manages live page connections: origin checks, per-client
// read and write pumps, and broadcast of reload notices.
package websocket

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/conneroisu/melodi/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Send pings to peer with this period
	pingPeriod = 30 * time.Second
	// Maximum message size allowed from peer
	maxMessageSize = 64 << 10
	// Outgoing messages queued per client
	sendBuffer = 32
)

// Handler answers one client message. A nil reply sends nothing.
type Handler func(ctx context.Context, c *Client, msg Message) (*Message, error)

// OriginValidator interface for WebSocket origin validation
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// AllowList accepts origins listed exactly (scheme://host[:port]). "*"
// accepts any http or https origin.
type AllowList []string

// IsAllowedOrigin implements OriginValidator
func (a AllowList) IsAllowedOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	normalized := u.Scheme + "://" + strings.ToLower(u.Host)
	for _, allowed := range a {
		if allowed == "*" || strings.TrimRight(strings.ToLower(allowed), "/") == normalized {
			return true
		}
	}
	return false
}

// Hub owns every live connection. The client set is only changed by the hub
// goroutine; Clients reads it under the mutex.
type Hub struct {
	clients      map[*Client]bool
	clientsMutex sync.RWMutex

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	origins OriginValidator
	logger  logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	done         chan struct{}
}

// NewHub starts a hub. Connections whose Origin the validator rejects are
// refused before the upgrade.
func NewHub(origins OriginValidator, logger logging.Logger) *Hub {
	if origins == nil {
		origins = AllowList(nil)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 16),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		origins:    origins,
		logger:     logger.WithComponent("websocket"),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.clientsMutex.Lock()
			for client := range h.clients {
				client.conn.Close(websocket.StatusGoingAway, "server shutting down")
				delete(h.clients, client)
			}
			h.clientsMutex.Unlock()
			return

		case client := <-h.register:
			h.clientsMutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.clientsMutex.Unlock()
			h.logger.Debug(h.ctx, "client connected", "session", client.key, "clients", count)

		case client := <-h.unregister:
			h.clientsMutex.Lock()
			if h.clients[client] {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMutex.Unlock()

		case msg := <-h.broadcast:
			h.clientsMutex.RLock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// slow client; it reloads on reconnect
					h.logger.Debug(h.ctx, "dropping message for slow client", "session", client.key)
				}
			}
			h.clientsMutex.RUnlock()
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every client. It is dropped after Shutdown.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	case <-h.ctx.Done():
	}
}

// Serve upgrades the request and pumps messages for one client until the
// connection closes. key ties the client to a session.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, key string, handler Handler) {
	origin := r.Header.Get("Origin")
	if origin == "" || !h.origins.IsAllowedOrigin(origin) {
		h.logger.Warn(r.Context(), nil, "websocket origin rejected", "origin", origin)
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}
	if h.ctx.Err() != nil {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// the origin was checked above against the configured list
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{conn: conn, send: make(chan Message, sendBuffer), key: key}
	client.touch()

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	// Reads end when the hub closes the connection on shutdown. A cancelled
	// read context would close it with a policy violation instead.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	go h.writePump(ctx, client)
	h.readPump(ctx, client, handler)
}

func (h *Hub) readPump(ctx context.Context, c *Client, handler Handler) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.ctx.Done():
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var msg Message
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && h.ctx.Err() == nil {
				h.logger.Debug(ctx, "websocket read ended", "session", c.key, "error", err.Error())
			}
			return
		}
		c.touch()

		if handler == nil {
			continue
		}
		reply, err := handler(ctx, c, msg)
		if err != nil {
			reply = &Message{Type: TypeError, ID: msg.ID, Error: err.Error()}
		}
		if reply == nil {
			continue
		}
		select {
		case c.send <- *reply:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) writePump(ctx context.Context, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := wsjson.Write(writeCtx, c.conn, msg)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// Shutdown closes every connection and stops the hub. It is safe to call
// more than once.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(h.cancel)
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
