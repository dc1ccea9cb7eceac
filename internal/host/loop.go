// Package host drives the interpreter from the shared queue once per tick,
// standing in for an application render loop.
package host

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"calib-bridge/internal/protocol"
	"calib-bridge/internal/queue"
)

// Loop drains the queue on every tick and feeds each line to the interpreter in order.
// The interpreter is only touched from the goroutine running Run (or calling Tick).
type Loop struct {
	queue       *queue.MessageQueue
	interpreter *protocol.Interpreter
	interval    time.Duration
	restart     chan struct{}
	log         zerolog.Logger
}

// NewLoop wires a queue to an explicitly owned interpreter.
func NewLoop(q *queue.MessageQueue, in *protocol.Interpreter, interval time.Duration, logger zerolog.Logger) *Loop {
	return &Loop{
		queue:       q,
		interpreter: in,
		interval:    interval,
		restart:     make(chan struct{}, 1),
		log:         logger.With().Str("component", "host").Logger(),
	}
}

// Interpreter returns the interpreter driven by this loop.
func (l *Loop) Interpreter() *protocol.Interpreter { return l.interpreter }

// Tick drains the queue once and returns how many lines were processed.
func (l *Loop) Tick() int {
	batch := l.queue.DrainAll()
	for _, msg := range batch {
		l.log.Debug().Str("message", msg).Msg("processing message")
		l.interpreter.ReceiveInput(msg)
	}
	return len(batch)
}

// Restart asks the loop to begin a new calibration before its next tick.
// Safe to call from any goroutine; repeated requests before the next tick collapse into one.
func (l *Loop) Restart() {
	select {
	case l.restart <- struct{}{}:
	default:
	}
}

// Run ticks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.log.Info().Dur("interval", l.interval).Msg("tick loop started")
	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("tick loop stopped")
			return nil
		case <-l.restart:
			l.interpreter.Restart()
		case <-ticker.C:
			l.Tick()
		}
	}
}
