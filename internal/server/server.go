// Package server runs the live server: every page load gets its own mounted
// application, and the page script drives it over a websocket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/melodi/internal/config"
	"github.com/conneroisu/melodi/internal/errors"
	"github.com/conneroisu/melodi/internal/logging"
	"github.com/conneroisu/melodi/internal/renderer"
	"github.com/conneroisu/melodi/internal/version"
	"github.com/conneroisu/melodi/internal/watcher"
	"github.com/conneroisu/melodi/internal/websocket"
)

// Builder produces a freshly mounted application. *renderer.Source is the
// production implementation.
type Builder interface {
	Build(ctx context.Context) (*renderer.Built, error)
}

const (
	// sessionTTL is how long a session without a connected page is kept
	sessionTTL = 2 * time.Minute
	// pruneInterval is how often idle sessions are collected
	pruneInterval = 30 * time.Second
)

// Server serves mounted applications with live reload capability
type Server struct {
	config *config.Config
	source Builder
	logger logging.Logger
	hub    *websocket.Hub

	httpServer  *http.Server
	serverMutex sync.RWMutex
	watcher     *watcher.FileWatcher

	sessions      map[string]*Session
	sessionsMutex sync.RWMutex

	shutdownOnce sync.Once
	started      time.Time
}

// New creates a server. Nothing listens until Start.
func New(cfg *config.Config, source Builder, logger logging.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "server needs a configuration")
	}
	if source == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "server needs an application source")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("server")

	return &Server{
		config:   cfg,
		source:   source,
		logger:   logger,
		hub:      websocket.NewHub(websocket.AllowList(cfg.Server.AllowedOrigins), logger),
		sessions: make(map[string]*Session),
		started:  time.Now(),
	}, nil
}

// Handler returns the routes wrapped in the request middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handlePage)
	return s.addMiddleware(mux)
}

// Start serves on the configured address until the server is shut down. With
// watching enabled, source changes drop every session and reload the pages.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Address(), err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s.config.Watch.Enabled {
		if err := s.setupFileWatcher(ctx); err != nil {
			listener.Close()
			return err
		}
	}
	go s.pruneLoop(ctx)

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "live server listening", "address", listener.Addr().String())
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) setupFileWatcher(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(s.config.Watch.Debounce, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	fw.AddFilter(watcher.SourceFilter)
	fw.AddFilter(watcher.NoEditorTempFilter)
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddHandler(s.handleFileChange)

	for _, path := range s.config.Watch.Paths {
		if err := fw.AddRecursive(path); err != nil {
			fw.Stop()
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
	if err := fw.Start(ctx); err != nil {
		fw.Stop()
		return err
	}

	s.serverMutex.Lock()
	s.watcher = fw
	s.serverMutex.Unlock()
	return nil
}

func (s *Server) handleFileChange(ctx context.Context, events []watcher.ChangeEvent) error {
	for _, event := range events {
		s.logger.Info(ctx, "source changed", "path", event.Path, "change", event.Type.String())
	}
	s.Reload(ctx)
	return nil
}

// Reload drops every session and tells connected pages to reload, which
// builds new sessions from the current sources.
func (s *Server) Reload(ctx context.Context) {
	s.sessionsMutex.Lock()
	old := s.sessions
	s.sessions = make(map[string]*Session)
	s.sessionsMutex.Unlock()

	for _, session := range old {
		session.close()
	}
	s.hub.Broadcast(websocket.Message{Type: websocket.TypeReload})
	s.logger.Debug(ctx, "reload broadcast", "sessions", len(old))
}

// Sessions returns the number of live sessions
func (s *Server) Sessions() int {
	s.sessionsMutex.RLock()
	defer s.sessionsMutex.RUnlock()
	return len(s.sessions)
}

func (s *Server) session(id string) (*Session, bool) {
	s.sessionsMutex.RLock()
	defer s.sessionsMutex.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *Server) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.prune(now.Add(-sessionTTL))
		}
	}
}

// prune closes sessions with no connected page that were idle since cutoff
func (s *Server) prune(cutoff time.Time) int {
	s.sessionsMutex.Lock()
	var stale []*Session
	for id, session := range s.sessions {
		if session.idle(cutoff) {
			stale = append(stale, session)
			delete(s.sessions, id)
		}
	}
	s.sessionsMutex.Unlock()

	for _, session := range stale {
		session.close()
	}
	return len(stale)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	built, err := s.source.Build(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), err, "build failed", "path", r.URL.Path)
		http.Error(w, "Build failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if r.URL.Path != "/" {
		if built.Router == nil {
			built.App.Unmount()
			http.NotFound(w, r)
			return
		}
		if err := built.Router.Navigate(r.URL.Path); err != nil {
			built.App.Unmount()
			http.NotFound(w, r)
			return
		}
		if err := built.App.Flush(r.Context()); err != nil {
			built.App.Unmount()
			http.Error(w, "Render failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	session, err := newSession(built)
	if err != nil {
		built.App.Unmount()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.sessionsMutex.Lock()
	s.sessions[session.ID()] = session
	s.sessionsMutex.Unlock()

	body := session.Body()
	if built.Manifest != nil {
		if issues := built.Manifest.Validate(); issues.HasErrors() {
			body = issues.ErrorOverlay() + body
		}
	}

	w.Header().Set("Cache-Control", "no-store")
	templ.Handler(Page(session.Head(), body, session.ID())).ServeHTTP(w, r)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	session, ok := s.session(id)
	if !ok {
		http.Error(w, "Unknown session", http.StatusNotFound)
		return
	}

	session.attach()
	defer session.detach()
	s.hub.Serve(w, r, id, func(ctx context.Context, _ *websocket.Client, msg websocket.Message) (*websocket.Message, error) {
		reply, err := session.Handle(ctx, msg)
		if err != nil {
			s.logger.Warn(ctx, err, "message failed", "session", id, "type", msg.Type)
		}
		return reply, err
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.serverMutex.RLock()
	watching := s.watcher != nil
	s.serverMutex.RUnlock()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"version":   version.Get().Short(),
		"sessions":  s.Sessions(),
		"clients":   s.hub.Clients(),
		"watching":  watching,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "failed to encode health response")
	}
}

func (s *Server) addMiddleware(handler http.Handler) http.Handler {
	allowed := websocket.AllowList(s.config.Server.AllowedOrigins)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowed.IsAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		start := time.Now()
		handler.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "request", "method", r.Method, "path", r.URL.Path,
			"duration", time.Since(start).String())
	})
}

// Shutdown gracefully shuts down the server and cleans up resources
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down live server")

		s.serverMutex.Lock()
		fw := s.watcher
		server := s.httpServer
		s.serverMutex.Unlock()

		if fw != nil {
			if err := fw.Stop(); err != nil {
				s.logger.Warn(ctx, err, "stopping file watcher")
			}
		}
		if err := s.hub.Shutdown(ctx); err != nil {
			shutdownErr = err
		}
		if server != nil {
			if err := server.Shutdown(ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}

		s.sessionsMutex.Lock()
		sessions := s.sessions
		s.sessions = make(map[string]*Session)
		s.sessionsMutex.Unlock()
		for _, session := range sessions {
			session.close()
		}
	})

	return shutdownErr
}
