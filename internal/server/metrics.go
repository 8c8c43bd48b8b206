package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SessionCounter reports the number of live game channels.
type SessionCounter interface {
	Len() int
}

// NewMetricsRouter serves /metrics from metrics and a JSON /healthz
// reporting the live session count.
func NewMetricsRouter(metrics http.Handler, sessions SessionCounter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", metrics)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, sessions.Len())
	})
	return r
}

// HTTPService runs an http.Server as a Service.
type HTTPService struct {
	server *http.Server
	logger *zap.Logger
	lis    net.Listener
}

// NewHTTPService creates a service serving handler on addr.
//
// Precondition: logger must be non-nil.
func NewHTTPService(addr string, handler http.Handler, logger *zap.Logger) *HTTPService {
	return &HTTPService{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Listen binds the listener. Start calls it when it has not been called.
func (s *HTTPService) Listen() error {
	if s.lis != nil {
		return nil
	}
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.lis = lis
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *HTTPService) Addr() string {
	if s.lis != nil {
		return s.lis.Addr().String()
	}
	return s.server.Addr
}

// Start implements Service.
func (s *HTTPService) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.logger.Info("metrics server listening", zap.String("addr", s.lis.Addr().String()))
	if err := s.server.Serve(s.lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop implements Service.
func (s *HTTPService) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("metrics server shutdown", zap.Error(err))
	}
}
