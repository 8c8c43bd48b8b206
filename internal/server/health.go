package server

import (
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService reports the bot's serving status over the standard gRPC
// health protocol.
type HealthService struct {
	addr   string
	server *grpc.Server
	health *health.Server
	logger *zap.Logger

	lis net.Listener
}

// NewHealthService creates a health service that will listen on addr.
// The overall status starts as NOT_SERVING.
//
// Precondition: logger must be non-nil.
func NewHealthService(addr string, logger *zap.Logger) *HealthService {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &HealthService{addr: addr, server: srv, health: hs, logger: logger}
}

// SetServing marks the bot and the named components as serving or not.
func (h *HealthService) SetServing(serving bool, components ...string) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	for _, c := range components {
		h.health.SetServingStatus(c, status)
	}
}

// Listen binds the listener. Start calls it when it has not been called.
func (h *HealthService) Listen() error {
	if h.lis != nil {
		return nil
	}
	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}
	h.lis = lis
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (h *HealthService) Addr() string {
	if h.lis != nil {
		return h.lis.Addr().String()
	}
	return h.addr
}

// Start implements Service.
func (h *HealthService) Start() error {
	if err := h.Listen(); err != nil {
		return err
	}
	h.logger.Info("gRPC health service listening", zap.String("addr", h.lis.Addr().String()))
	if err := h.server.Serve(h.lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Stop implements Service.
func (h *HealthService) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
