package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/conneroisu/melodi/internal/dom"
	"github.com/conneroisu/melodi/internal/renderer"
	"github.com/conneroisu/melodi/internal/websocket"
)

// MountIDAttr marks elements the page script reports events for
const MountIDAttr = "data-mid"

// Session is one browser tab's application. Every method holds the session
// mutex, so the App is only ever driven by one goroutine at a time.
type Session struct {
	id      string
	built   *renderer.Built
	created time.Time

	mu       sync.Mutex
	nodes    map[string]*html.Node
	lastBody string
	clients  int
	lastSeen time.Time
}

func newSession(built *renderer.Built) (*Session, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	now := time.Now()
	return &Session{
		id:       hex.EncodeToString(raw[:]),
		built:    built,
		created:  now,
		lastSeen: now,
		nodes:    make(map[string]*html.Node),
	}, nil
}

// ID returns the session key the page script connects with
func (s *Session) ID() string { return s.id }

// Head returns the page head markup
func (s *Session) Head() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	head := s.built.App.Document().QuerySelector("head")
	if head == nil {
		return ""
	}
	return dom.InnerHTML(head)
}

// Body serializes the document body, tagging every element with listeners
// with a mount id.
func (s *Session) Body() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderLocked()
}

// renderLocked assigns fresh ids on each call. Ids are added for the
// serialization only and removed before returning.
func (s *Session) renderLocked() string {
	doc := s.built.App.Document()
	body := doc.Body()
	if body == nil {
		return ""
	}

	s.nodes = make(map[string]*html.Node, len(s.nodes))
	next := 0
	dom.Walk(body, func(n *html.Node) bool {
		if n.Type == html.ElementNode && doc.HasListeners(n) {
			next++
			id := "m" + strconv.Itoa(next)
			s.nodes[id] = n
			dom.SetAttr(n, MountIDAttr, id)
		}
		return true
	})

	markup := dom.InnerHTML(body)
	for _, n := range s.nodes {
		dom.RemoveAttr(n, MountIDAttr)
	}
	s.lastBody = markup
	return markup
}

// Handle applies one client message and returns the re-rendered body. Events
// that leave the body unchanged produce no reply.
func (s *Session) Handle(ctx context.Context, msg websocket.Message) (*websocket.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	previous := s.lastBody
	switch msg.Type {
	case websocket.TypeEvent:
		if err := s.dispatchLocked(msg); err != nil {
			return nil, err
		}
	case websocket.TypeNavigate:
		if s.built.Router == nil {
			return nil, fmt.Errorf("navigate %q: the application has no routes", msg.Path)
		}
		if err := s.built.Router.Navigate(msg.Path); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported message type %q", msg.Type)
	}

	if err := s.built.App.Flush(ctx); err != nil {
		return nil, err
	}
	markup := s.renderLocked()
	if markup == previous {
		return nil, nil
	}
	return &websocket.Message{Type: websocket.TypeRender, ID: msg.ID, HTML: markup}, nil
}

func (s *Session) dispatchLocked(msg websocket.Message) error {
	n, ok := s.nodes[msg.ID]
	if !ok {
		return fmt.Errorf("unknown element %q", msg.ID)
	}
	doc := s.built.App.Document()

	switch msg.Event {
	case "click":
		doc.Click(n)
	case "input":
		dom.SetValue(n, msg.Value)
		doc.Dispatch(n, &dom.Event{Type: "input"})
	case "change":
		switch strings.ToLower(dom.Attr(n, "type")) {
		case "checkbox", "radio":
			doc.SetChecked(n, msg.Checked)
		default:
			dom.SetValue(n, msg.Value)
			doc.Dispatch(n, &dom.Event{Type: "change"})
		}
	case "":
		return fmt.Errorf("event for %q has no name", msg.ID)
	default:
		doc.Dispatch(n, &dom.Event{Type: msg.Event, Detail: msg.Value})
	}
	return nil
}

func (s *Session) attach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients++
	s.lastSeen = time.Now()
}

func (s *Session) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients--
	s.lastSeen = time.Now()
}

// idle reports whether no client is attached and nothing happened since
// cutoff.
func (s *Session) idle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients == 0 && s.lastSeen.Before(cutoff)
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.built.App.Unmount()
}
