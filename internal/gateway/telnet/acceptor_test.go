package telnet

import (
	"bufio"
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/tictactoe-bot/internal/config"
)

// echoHandler echoes lines back until the client says quit.
type echoHandler struct {
	sessions atomic.Int32
}

func (h *echoHandler) HandleSession(_ context.Context, conn *Conn) error {
	h.sessions.Add(1)
	for {
		line, err := conn.ReadLine()
		if err != nil {
			return err
		}
		if line == "quit" {
			_ = conn.WriteLine("bye")
			return nil
		}
		_ = conn.WriteLine("echo: " + line)
	}
}

func startAcceptor(t *testing.T, handler SessionHandler) (*Acceptor, <-chan error) {
	t.Helper()
	cfg := config.GatewayConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	acc := NewAcceptor(cfg, handler, zaptest.NewLogger(t))
	require.NoError(t, acc.Listen())
	errCh := make(chan error, 1)
	go func() { errCh <- acc.ListenAndServe() }()
	return acc, errCh
}

func dial(t *testing.T, addr string) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn, bufio.NewReader(conn)
}

func TestAcceptorEchoAndStop(t *testing.T) {
	handler := &echoHandler{}
	acc, errCh := startAcceptor(t, handler)
	require.NotEmpty(t, acc.Addr())

	conn, r := dial(t, acc.Addr())
	defer conn.Close()

	_, err := conn.Write([]byte("hello\r\n"))
	require.NoError(t, err)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	// The first line carries the negotiation bytes.
	assert.Contains(t, line, "echo: hello")
	assert.Equal(t, []byte{IAC, WILL, OptSuppressGoAhead}, []byte(line[:3]))

	_, err = conn.Write([]byte("quit\r\n"))
	require.NoError(t, err)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "bye\r\n", line)

	acc.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("acceptor did not stop in time")
	}
	assert.Equal(t, int32(1), handler.sessions.Load())
}

func TestAcceptorStopClosesOpenSessions(t *testing.T) {
	handler := &echoHandler{}
	acc, errCh := startAcceptor(t, handler)

	const clients = 3
	for i := 0; i < clients; i++ {
		conn, r := dial(t, acc.Addr())
		defer conn.Close()
		_, err := conn.Write([]byte("ping\n"))
		require.NoError(t, err)
		_, err = r.ReadString('\n')
		require.NoError(t, err)
	}

	done := make(chan struct{})
	go func() {
		acc.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return with sessions open")
	}
	assert.NoError(t, <-errCh)
	assert.Equal(t, int32(clients), handler.sessions.Load())
	assert.Empty(t, acc.conns)
}

func TestAcceptorStopBeforeListen(t *testing.T) {
	acc := NewAcceptor(config.GatewayConfig{Host: "127.0.0.1"}, &echoHandler{}, zaptest.NewLogger(t))
	acc.Stop()
	assert.Equal(t, "", acc.Addr())
}
