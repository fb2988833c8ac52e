package websocket

import (
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// Message types exchanged with the page script
const (
	// TypeEvent carries a DOM event from the browser
	TypeEvent = "event"
	// TypeNavigate asks the session router to move to Path
	TypeNavigate = "navigate"
	// TypeRender carries the re-rendered document body
	TypeRender = "render"
	// TypeReload tells every page to reload after a source change
	TypeReload = "reload"
	// TypeError reports a failed event or navigation
	TypeError = "error"
)

// Message is the single JSON envelope used in both directions
type Message struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Event   string `json:"event,omitempty"`
	Value   string `json:"value,omitempty"`
	Checked bool   `json:"checked,omitempty"`
	Path    string `json:"path,omitempty"`
	HTML    string `json:"html,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	conn         *websocket.Conn
	send         chan Message
	key          string
	lastActivity atomic.Int64
}

// Key identifies the session the client is attached to
func (c *Client) Key() string { return c.key }

// LastActivity is when the client last sent a message
func (c *Client) LastActivity() time.Time { return time.Unix(0, c.lastActivity.Load()) }

func (c *Client) touch() { c.lastActivity.Store(time.Now().UnixNano()) }
