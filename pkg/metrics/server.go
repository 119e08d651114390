package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smppware/hlrgate/internal/logger"
)

// ServerConfig configures the metrics HTTP endpoint.
type ServerConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// Server exposes the registry over HTTP.
type Server struct {
	cfg  ServerConfig
	http *http.Server
}

// NewServer builds the metrics server. Call Start to begin serving.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &Server{
		cfg: cfg,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start binds the listener and serves in a background goroutine. A nil
// error means the port is bound; serve-loop failures are logged.
func (s *Server) Start() error {
	if !s.cfg.Enabled {
		logger.Info("metrics server disabled")
		return nil
	}

	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("bind metrics listener: %w", err)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	logger.Info("metrics server started", "port", s.cfg.Port, "path", s.cfg.Path)
	return nil
}

// Shutdown stops the HTTP server, waiting for in-flight scrapes up to the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	return s.http.Shutdown(ctx)
}
