// Package server hosts preview panels over HTTP. Each client session owns
// one panel; toggles, retry and camera input arrive as JSON, scene
// metrics stream over a websocket and frames are served as PNG.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/meshpreview/internal/engine/renderer"
	"github.com/Faultbox/meshpreview/internal/preview"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("session limit reached")
)

// Options tune the host.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	MaxSessions  int

	// Defaults applied to new panels.
	Height  string
	FOV     float64
	Preset  int
	Grid    bool
	Damping bool
	FPS     int
}

// DefaultOptions mirror config.Default.
func DefaultOptions() Options {
	return Options{
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		PingInterval: 30 * time.Second,
		MaxSessions:  64,
		Height:       preview.PanelHeight,
		FOV:          45,
		Grid:         true,
		Damping:      true,
		FPS:          60,
	}
}

// Server is the preview host.
type Server struct {
	loader   preview.Loader
	renderer *renderer.Renderer
	theme    *preview.Theme
	log      *zap.Logger
	opts     Options
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates a server. A nil logger discards output.
func New(loader preview.Loader, r *renderer.Renderer, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		loader:   loader,
		renderer: r,
		theme:    preview.NewTheme(false),
		log:      log,
		opts:     opts,
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			// Panels are embedded in a dashboard served from another origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/presets", s.handlePresets)
	s.mux.HandleFunc("GET /api/theme", s.handleGetTheme)
	s.mux.HandleFunc("PUT /api/theme", s.handlePutTheme)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreate)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGet)
	s.mux.HandleFunc("PATCH /api/sessions/{id}", s.handlePatch)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDelete)
	s.mux.HandleFunc("POST /api/sessions/{id}/retry", s.handleRetry)
	s.mux.HandleFunc("POST /api/sessions/{id}/camera", s.handleCamera)
	s.mux.HandleFunc("GET /api/sessions/{id}/frame.png", s.handleFrame)
	s.mux.HandleFunc("GET /api/sessions/{id}/ws", s.handleWebSocket)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Theme is the host theme every panel created with followTheme tracks.
func (s *Server) Theme() *preview.Theme {
	return s.theme
}

// ListenAndServe serves on addr until ctx is cancelled, then closes all
// sessions.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close unmounts every panel.
func (s *Server) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) lookup(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *Server) add(sess *session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.MaxSessions > 0 && len(s.sessions) >= s.opts.MaxSessions {
		return ErrTooManySessions
	}
	s.sessions[sess.id] = sess
	return nil
}

func (s *Server) remove(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	return sess, ok
}
