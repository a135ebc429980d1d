package httpapi

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/yt-summary/internal/orchestrator"
	"github.com/MimeLyc/yt-summary/internal/probe"
)

type submissions interface {
	Submit(input string) (orchestrator.Snapshot, error)
	Snapshot() orchestrator.Snapshot
	Reset() (orchestrator.Snapshot, error)
	Events() *orchestrator.EventBus
}

type healthSource interface {
	Last() (probe.Status, bool)
	Check(ctx context.Context) probe.Status
}

type Server struct {
	orch   submissions
	health healthSource

	uiEnabled   bool
	uiStaticDir string
	heartbeat   time.Duration

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithUI(staticDir string, enabled bool) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
		s.uiEnabled = enabled
	}
}

func WithHealthSource(src healthSource) Option {
	return func(s *Server) {
		s.health = src
	}
}

// WithHeartbeat sets how often an idle SSE stream gets a keep-alive comment.
func WithHeartbeat(interval time.Duration) Option {
	return func(s *Server) {
		if interval > 0 {
			s.heartbeat = interval
		}
	}
}

func NewServer(orch submissions, opts ...Option) *Server {
	s := &Server{
		orch:      orch,
		uiEnabled: false,
		heartbeat: 15 * time.Second,
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/submissions", s.handleSubmissions)
	s.mux.HandleFunc("/api/state", s.handleState)
	s.mux.HandleFunc("/api/state/stream", s.handleStateStream)
	s.mux.HandleFunc("/api/reset", s.handleReset)
	s.mux.HandleFunc("/api/backend/health", s.handleBackendHealth)
	s.mux.HandleFunc("/", s.handleStatic)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if !s.uiEnabled || s.uiStaticDir == "" {
		http.NotFound(w, r)
		return
	}

	rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	indexPath := filepath.Join(s.uiStaticDir, "index.html")

	if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
		http.ServeFile(w, r, indexPath)
		return
	}

	filePath := filepath.Join(s.uiStaticDir, rel)
	if _, err := os.Stat(filePath); err != nil {
		// SPA fallback: non-existing static file path returns index
		http.ServeFile(w, r, indexPath)
		return
	}
	http.ServeFile(w, r, filePath)
}
