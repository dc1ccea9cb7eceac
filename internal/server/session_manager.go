package server

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Connection bookkeeping

// Connection describes one live client connection.
type Connection struct {
	ID          string
	Remote      string
	ConnectedAt time.Time

	lines atomic.Int64
}

// Lines is the number of non-empty lines queued from this connection so far.
func (c *Connection) Lines() int64 { return c.lines.Load() }

// ConnectionStats is a point-in-time copy of a Connection, logged when
// shutdown gives up on its handler.
type ConnectionStats struct {
	ID          string    `json:"id"`
	Remote      string    `json:"remote"`
	ConnectedAt time.Time `json:"connected_at"`
	Lines       int64     `json:"lines"`
}

// ConnectionRegistry tracks the connections currently being handled.
type ConnectionRegistry struct {
	conns map[string]*Connection // connection ID -> Connection
	mu    sync.RWMutex
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]*Connection),
	}
}

// Register records a new connection from remote under a fresh ID.
func (r *ConnectionRegistry) Register(remote string) *Connection {
	c := &Connection{
		ID:          uuid.New().String(),
		Remote:      remote,
		ConnectedAt: time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = c
	return c
}

// Remove forgets a connection once its handler has exited.
func (r *ConnectionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

// Count returns the number of live connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot returns stats for every live connection, oldest first.
func (r *ConnectionRegistry) Snapshot() []ConnectionStats {
	r.mu.RLock()
	out := make([]ConnectionStats, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, ConnectionStats{
			ID:          c.ID,
			Remote:      c.Remote,
			ConnectedAt: c.ConnectedAt,
			Lines:       c.Lines(),
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}
