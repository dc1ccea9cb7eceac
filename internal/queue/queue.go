// Package queue holds the FIFO that connection handlers fill and the host tick drains.
package queue

import (
	"sync"

	ring "github.com/eapache/queue"
)

// MessageQueue is an unbounded, mutex-guarded FIFO of raw lines.
// Any number of goroutines may Push; exactly one consumer should call DrainAll.
type MessageQueue struct {
	mu    sync.Mutex
	lines *ring.Queue
}

// New returns an empty MessageQueue.
func New() *MessageQueue {
	return &MessageQueue{lines: ring.New()}
}

// Push appends a line. The lock is held only for the append.
func (q *MessageQueue) Push(line string) {
	q.mu.Lock()
	q.lines.Add(line)
	q.mu.Unlock()
}

// DrainAll removes and returns every queued line in arrival order.
// It never blocks on an empty queue; the result is then an empty slice.
func (q *MessageQueue) DrainAll() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]string, 0, q.lines.Length())
	for q.lines.Length() > 0 {
		out = append(out, q.lines.Remove().(string))
	}
	return out
}

// Len reports how many lines are waiting.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lines.Length()
}
