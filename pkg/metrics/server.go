package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// AdminServer exposes /metrics, plus any probes the service mounts, on a
// port separate from the public API.
type AdminServer struct {
	mux    *http.ServeMux
	server *http.Server
	logger *slog.Logger
}

func NewAdminServer(port int) *AdminServer {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())
	s := &AdminServer{
		mux: mux,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: slog.Default().With("component", "admin-server"),
	}
	mux.HandleFunc("GET /{$}", s.index)
	return s
}

// Handle mounts h on the admin port. It must be called before Start.
func (s *AdminServer) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Start serves in the background until Shutdown.
func (s *AdminServer) Start() {
	go func() {
		s.logger.Info("admin server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server error", "error", err)
		}
	}()
}

func (s *AdminServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *AdminServer) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<html><body><h1>showsearch</h1><ul>`+
		`<li><a href="/metrics">/metrics</a></li>`+
		`<li><a href="/health/ready">/health/ready</a></li>`+
		`</ul></body></html>`)
}
