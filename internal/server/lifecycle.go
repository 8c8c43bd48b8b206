// Package server runs the bot's long-lived services and the operational
// endpoints: Prometheus metrics over HTTP and gRPC health checks.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component.
type Service interface {
	// Start blocks until the service stops or fails.
	Start() error
	// Stop makes Start return.
	Stop()
}

// FuncService adapts a start/stop function pair into the Service interface.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start calls the underlying start function.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls the underlying stop function.
func (f *FuncService) Stop() { f.StopFn() }

// Lifecycle starts services in registration order and stops them in
// reverse order.
type Lifecycle struct {
	logger   *zap.Logger
	mu       sync.Mutex
	services []namedService
}

type namedService struct {
	name    string
	service Service
}

// NewLifecycle creates a new Lifecycle manager.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers a named service.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// Run starts all services and blocks until ctx is cancelled or a service
// fails. Callers wire OS signals into ctx.
//
// Postcondition: All services are stopped and every Start has returned.
// The first service failure, if any, is returned.
func (l *Lifecycle) Run(ctx context.Context) error {
	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	l.mu.Unlock()

	start := time.Now()
	errCh := make(chan error, len(services))
	var wg sync.WaitGroup
	for _, ns := range services {
		wg.Add(1)
		go func(ns namedService) {
			defer wg.Done()
			l.logger.Info("starting service", zap.String("service", ns.name))
			if err := ns.service.Start(); err != nil {
				errCh <- fmt.Errorf("service %s: %w", ns.name, err)
			}
		}(ns)
	}
	l.logger.Info("all services started",
		zap.Int("count", len(services)),
		zap.Duration("startup", time.Since(start)),
	)

	var runErr error
	select {
	case <-ctx.Done():
		l.logger.Info("shutting down", zap.NamedError("cause", context.Cause(ctx)))
	case runErr = <-errCh:
		l.logger.Error("service failed, shutting down", zap.Error(runErr))
	}

	l.stopAll(services)
	wg.Wait()
	l.logger.Info("shutdown complete", zap.Duration("uptime", time.Since(start)))
	return runErr
}

func (l *Lifecycle) stopAll(services []namedService) {
	for i := len(services) - 1; i >= 0; i-- {
		ns := services[i]
		t := time.Now()
		ns.service.Stop()
		l.logger.Info("service stopped",
			zap.String("service", ns.name),
			zap.Duration("elapsed", time.Since(t)),
		)
	}
}
