package testutil

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cory-johannsen/tictactoe-bot/internal/gateway/telnet"
)

// TelnetClient is a chat gateway client for integration tests.
type TelnetClient struct {
	conn net.Conn
	t    *testing.T
}

// NewTelnetClient dials the given address and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected TelnetClient or fails the test.
func NewTelnetClient(t *testing.T, addr string) *TelnetClient {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}
	t.Cleanup(func() {
		conn.Close()
	})
	return &TelnetClient{conn: conn, t: t}
}

// ReadUntil reads until the output, with ANSI styling and Telnet
// negotiation removed, contains substr. It returns everything read.
//
// Precondition: substr must be non-empty.
// Postcondition: Returns the accumulated output containing substr, or fails on timeout.
func (c *TelnetClient) ReadUntil(substr string, timeout time.Duration) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	var buf strings.Builder
	tmp := make([]byte, 1024)
	for {
		n, err := c.conn.Read(tmp)
		if n > 0 {
			buf.Write(stripNegotiation(tmp[:n]))
			if out := telnet.StripANSI(buf.String()); strings.Contains(out, substr) {
				return out
			}
		}
		if err != nil {
			c.t.Fatalf("reading until %q: got %q, error: %v", substr, telnet.StripANSI(buf.String()), err)
		}
	}
}

// stripNegotiation drops the three-byte IAC option commands the gateway
// sends on connect.
func stripNegotiation(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == telnet.IAC && i+2 < len(data) {
			i += 2
			continue
		}
		out = append(out, data[i])
	}
	return out
}

// Send writes a line of text to the server, appending \r\n.
//
// Precondition: text should not contain trailing newline characters.
// Postcondition: text + \r\n is written to the connection.
func (c *TelnetClient) Send(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := fmt.Fprintf(c.conn, "%s\r\n", text)
	if err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// Login answers the gateway's name prompt and waits until the user has
// joined the default room.
func (c *TelnetClient) Login(name string, timeout time.Duration) {
	c.t.Helper()
	c.ReadUntil("Name: ", timeout)
	c.Send(name)
	c.ReadUntil("You are in #", timeout)
}

// Close closes the underlying connection.
func (c *TelnetClient) Close() {
	c.conn.Close()
}
