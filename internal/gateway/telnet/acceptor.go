package telnet

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe-bot/internal/config"
)

// SessionHandler serves one connected client until it leaves.
type SessionHandler interface {
	HandleSession(ctx context.Context, conn *Conn) error
}

// Acceptor listens for Telnet connections and hands each one to a
// SessionHandler in its own goroutine.
type Acceptor struct {
	cfg     config.GatewayConfig
	handler SessionHandler
	logger  *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]struct{}
	running  bool
	quit     chan struct{}
	wg       sync.WaitGroup
}

// NewAcceptor creates a Telnet acceptor.
//
// Precondition: handler and logger must be non-nil.
func NewAcceptor(cfg config.GatewayConfig, handler SessionHandler, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		conns:   make(map[*Conn]struct{}),
		quit:    make(chan struct{}),
	}
}

// Listen binds the TCP listener without accepting yet. ListenAndServe
// calls it when needed.
func (a *Acceptor) Listen() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return nil
	}
	lis, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}
	a.listener = lis
	a.running = true
	return nil
}

// ListenAndServe accepts connections until Stop is called.
//
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) ListenAndServe() error {
	if err := a.Listen(); err != nil {
		return err
	}
	a.mu.Lock()
	lis := a.listener
	a.mu.Unlock()
	a.logger.Info("chat gateway listening", zap.String("addr", lis.Addr().String()))

	for {
		raw, err := lis.Accept()
		if err != nil {
			select {
			case <-a.quit:
				return nil
			default:
				a.logger.Error("accepting connection", zap.Error(err))
				continue
			}
		}
		conn := NewConn(raw, a.cfg.ReadTimeout, a.cfg.WriteTimeout)
		if !a.track(conn) {
			conn.Close()
			return nil
		}
		a.wg.Add(1)
		go a.serve(conn)
	}
}

func (a *Acceptor) track(conn *Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return false
	}
	a.conns[conn] = struct{}{}
	return true
}

func (a *Acceptor) serve(conn *Conn) {
	defer a.wg.Done()
	defer func() {
		a.mu.Lock()
		delete(a.conns, conn)
		a.mu.Unlock()
		conn.Close()
	}()
	start := time.Now()
	addr := conn.RemoteAddr().String()

	if err := conn.Negotiate(); err != nil {
		a.logger.Warn("telnet negotiation failed", zap.String("remote_addr", addr), zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-a.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := a.handler.HandleSession(ctx, conn)
	a.logger.Debug("client disconnected",
		zap.String("remote_addr", addr),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
}

// Stop closes the listener and every open connection, then waits for the
// session goroutines to return.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.quit)
	if a.listener != nil {
		a.listener.Close()
	}
	for c := range a.conns {
		c.Close()
	}
	a.mu.Unlock()

	a.wg.Wait()
	a.logger.Info("chat gateway stopped")
}

// Addr returns the listening address, or "" before Listen.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}
