package client

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"calib-bridge/internal/network"
)

const (
	DefaultServerAddress = "localhost:55000"
	dialTimeout          = 5 * time.Second
)

// Client is a line-oriented connection to the calibration server.
type Client struct {
	Address string
	TCPConn net.Conn

	reader  *bufio.Reader
	writeMu sync.Mutex
	log     zerolog.Logger
}

// NewClient creates a client for address; it does not connect yet.
func NewClient(address string, logger zerolog.Logger) *Client {
	if address == "" {
		address = DefaultServerAddress
	}
	return &Client{
		Address: address,
		log:     logger.With().Str("component", "client").Str("server", address).Logger(),
	}
}

// Connect dials the server.
func (c *Client) Connect(ctx context.Context) error {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.Address)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.Address, err)
	}
	c.TCPConn = conn
	c.reader = bufio.NewReader(conn)
	c.log.Info().Msg("connected to server")
	return nil
}

// Send writes one line. It is safe to call from several goroutines.
func (c *Client) Send(line string) error {
	if c.TCPConn == nil {
		return fmt.Errorf("client is not connected")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := network.WriteLine(c.TCPConn, line); err != nil {
		return fmt.Errorf("sending %q: %w", line, err)
	}
	c.log.Debug().Str("line", line).Msg("sent")
	return nil
}

// ReadAck reads one reply line and returns the line the server echoed.
func (c *Client) ReadAck() (string, error) {
	if c.reader == nil {
		return "", fmt.Errorf("client is not connected")
	}
	reply, err := network.ReadLine(c.reader)
	if err != nil {
		return "", err
	}
	line, ok := network.ParseAck(reply)
	if !ok {
		return "", fmt.Errorf("unexpected reply %q", reply)
	}
	return line, nil
}

// SendLines writes every line and waits for their acknowledgments.
// Writes and reads run concurrently. onAck, when set, is called for each
// acknowledgment in order.
// Empty lines are sent but produce no acknowledgment.
func (c *Client) SendLines(ctx context.Context, lines []string, onAck func(line string)) error {
	if c.TCPConn == nil {
		return fmt.Errorf("client is not connected")
	}
	expected := 0
	for _, l := range lines {
		if l != "" {
			expected++
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	// Wait cancels ctx even on success; only a failed or cancelled batch may
	// interrupt the pending read.
	var mu sync.Mutex
	acked := false
	stop := context.AfterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		if !acked {
			_ = c.TCPConn.SetReadDeadline(time.Now())
		}
	})
	defer stop()

	g.Go(func() error {
		for _, l := range lines {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.Send(l); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for i := 0; i < expected; i++ {
			line, err := c.ReadAck()
			if err != nil {
				return fmt.Errorf("waiting for acknowledgment %d of %d: %w", i+1, expected, err)
			}
			if onAck != nil {
				onAck(line)
			}
		}
		mu.Lock()
		acked = true
		mu.Unlock()
		return nil
	})
	return g.Wait()
}

// CloseConnections closes the TCP connection if open.
func (c *Client) CloseConnections() {
	if c.TCPConn != nil {
		c.TCPConn.Close()
		c.log.Info().Msg("TCP connection closed")
	}
}
