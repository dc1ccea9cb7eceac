package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calib-bridge/internal/config"
	"calib-bridge/internal/models"
	"calib-bridge/internal/network"
	"calib-bridge/internal/queue"
)

func newTestServer(t *testing.T, mutate func(*models.Config)) (*Server, *queue.MessageQueue) {
	t.Helper()

	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, config.Validate(cfg))

	q := queue.New()
	srv := NewServer(cfg, q, zerolog.Nop())
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, q
}

func dial(t *testing.T, srv *Server) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, bufio.NewReader(conn)
}

func readAck(t *testing.T, conn net.Conn, r *bufio.Reader) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	reply, err := r.ReadString('\n')
	require.NoError(t, err)
	return reply
}

func TestAcknowledgesEachLineInOrder(t *testing.T) {
	srv, q := newTestServer(t, nil)
	conn, r := dial(t, srv)

	_, err := io.WriteString(conn, "1\r\n\nok\n[2]\n")
	require.NoError(t, err)

	assert.Equal(t, "Server received: 1\n", readAck(t, conn, r))
	assert.Equal(t, "Server received: ok\n", readAck(t, conn, r))
	assert.Equal(t, "Server received: [2]\n", readAck(t, conn, r))

	assert.Equal(t, []string{"1", "ok", "[2]"}, q.DrainAll(), "empty line is neither queued nor acknowledged")
}

func TestConcurrentClientsNoLossPerConnectionOrder(t *testing.T) {
	const clients, linesPerClient = 8, 50
	srv, q := newTestServer(t, nil)

	var wg sync.WaitGroup
	for c := 0; c < clients; c++ {
		conn, r := dial(t, srv)
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			for i := 0; i < linesPerClient; i++ {
				line := fmt.Sprintf("%d:%d", c, i)
				if err := network.WriteLine(conn, line); err != nil {
					t.Errorf("client %d write: %v", c, err)
					return
				}
				_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				reply, err := r.ReadString('\n')
				if err != nil {
					t.Errorf("client %d read: %v", c, err)
					return
				}
				if got, ok := network.ParseAck(reply); !ok || got != line {
					t.Errorf("client %d: ack %q for %q", c, reply, line)
					return
				}
			}
		}(c)
	}
	wg.Wait()

	got := q.DrainAll()
	require.Len(t, got, clients*linesPerClient)

	next := make([]int, clients)
	for _, line := range got {
		var c, i int
		_, err := fmt.Sscanf(line, "%d:%d", &c, &i)
		require.NoError(t, err)
		require.Equal(t, next[c], i, "client %d out of order", c)
		next[c]++
	}
}

func TestShutdownWithIdleConnectionIsBounded(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *models.Config) {
		cfg.ReadTimeout = time.Minute
		cfg.ShutdownTimeout = time.Second
	})
	conn, r := dial(t, srv)

	// Make sure the handler is running and parked in a read.
	require.NoError(t, network.WriteLine(conn, "hello"))
	readAck(t, conn, r)
	require.Equal(t, 1, srv.Connections().Count())

	start := time.Now()
	require.NoError(t, srv.Shutdown(context.Background()))
	assert.Less(t, time.Since(start), 1500*time.Millisecond)

	assert.Zero(t, srv.Connections().Count(), "handler exited after cancellation")

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err := r.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF, "server closed the connection")
}

func TestShutdownStopsAccepting(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	addr := srv.Addr().String()

	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()), "second shutdown is a no-op")

	_, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	assert.Error(t, err)
}

func TestStartContextCancelStopsListener(t *testing.T) {
	cfg := config.Default()
	cfg.Host, cfg.Port = "127.0.0.1", 0
	srv := NewServer(cfg, queue.New(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Start(ctx))
	addr := srv.Addr().String()

	cancel()
	require.Eventually(t, func() bool {
		c, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			c.Close()
		}
		return err != nil
	}, time.Second, 20*time.Millisecond)

	require.NoError(t, srv.Shutdown(context.Background()))
}

func TestReadTimeoutClosesIdleConnection(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *models.Config) {
		cfg.ReadTimeout = 100 * time.Millisecond
	})
	conn, r := dial(t, srv)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := r.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)
	assert.Eventually(t, func() bool { return srv.Connections().Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBindFailure(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	port := srv.Addr().(*net.TCPAddr).Port

	cfg := config.Default()
	cfg.Host, cfg.Port = "127.0.0.1", port
	second := NewServer(cfg, queue.New(), zerolog.Nop())

	err := second.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
	assert.Nil(t, second.Addr())
}

func TestStartTwice(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	assert.ErrorIs(t, srv.Start(context.Background()), ErrAlreadyStarted)
}

func TestRateLimitedConnectionDeliversEverything(t *testing.T) {
	srv, q := newTestServer(t, func(cfg *models.Config) {
		cfg.RateLimit = 200
		cfg.RateBurst = 1
	})
	conn, r := dial(t, srv)

	for i := 0; i < 10; i++ {
		require.NoError(t, network.WriteLine(conn, fmt.Sprint(i)))
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, network.FormatAck(fmt.Sprint(i)), readAck(t, conn, r))
	}
	assert.Len(t, q.DrainAll(), 10)
}

func TestUnterminatedFinalLineIsQueued(t *testing.T) {
	srv, q := newTestServer(t, nil)
	conn, r := dial(t, srv)

	_, err := io.WriteString(conn, "tail")
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	assert.Equal(t, "Server received: tail\n", readAck(t, conn, r))
	assert.Eventually(t, func() bool { return q.Len() == 1 }, time.Second, 10*time.Millisecond)
}

type nilAddrConn struct{ net.Conn }

func (nilAddrConn) RemoteAddr() net.Addr { return nil }

func TestRemoteLabel(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	assert.Equal(t, "pipe", remoteLabel(a))
	assert.Equal(t, unknownClient, remoteLabel(nilAddrConn{a}))
}
