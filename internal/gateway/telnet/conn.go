package telnet

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"time"
)

// Telnet command bytes (RFC 854) the gateway understands.
const (
	IAC  byte = 255
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250
	SE   byte = 240

	OptSuppressGoAhead byte = 3
)

// maxLineLength caps a single chat line; longer input is truncated.
const maxLineLength = 2000

// Conn is a line-oriented Telnet connection. Writes are serialized so
// broadcasts from other sessions never interleave within a line.
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader
	mu     sync.Mutex

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps raw.
//
// Precondition: raw must be an open connection.
func NewConn(raw net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		raw:          raw,
		reader:       bufio.NewReaderSize(raw, 4096),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// Negotiate asks the client to suppress go-ahead.
func (c *Conn) Negotiate() error {
	return c.write([]byte{IAC, WILL, OptSuppressGoAhead})
}

// ReadLine returns the next line without its terminator. Telnet commands
// and control characters other than tab are dropped.
//
// Postcondition: Returns the line, or an error (including io.EOF).
func (c *Conn) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	var line strings.Builder
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			return line.String(), err
		}
		switch {
		case b == IAC:
			if err := c.skipCommand(); err != nil {
				return line.String(), err
			}
		case b == '\n':
			return line.String(), nil
		case b == '\r':
			// A split CRLF leaves an empty line behind, which callers skip.
			if c.reader.Buffered() > 0 {
				if next, err := c.reader.Peek(1); err == nil && next[0] == '\n' {
					_, _ = c.reader.ReadByte()
				}
			}
			return line.String(), nil
		case b < 32 && b != '\t':
		case line.Len() < maxLineLength:
			line.WriteByte(b)
		}
	}
}

// skipCommand consumes the rest of a Telnet command after IAC.
func (c *Conn) skipCommand() error {
	cmd, err := c.reader.ReadByte()
	if err != nil {
		return err
	}
	switch cmd {
	case WILL, WONT, DO, DONT:
		_, err = c.reader.ReadByte()
		return err
	case SB:
		var prev byte
		for {
			b, err := c.reader.ReadByte()
			if err != nil {
				return err
			}
			if prev == IAC && b == SE {
				return nil
			}
			prev = b
		}
	}
	return nil
}

// WriteLine sends text followed by CRLF. Embedded newlines become CRLF.
func (c *Conn) WriteLine(text string) error {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n", "\r\n")
	return c.write([]byte(text + "\r\n"))
}

// WritePrompt sends text without a line terminator.
func (c *Conn) WritePrompt(text string) error {
	return c.write([]byte(text))
}

func (c *Conn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.raw.Write(data)
	return err
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr returns the client's address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}
