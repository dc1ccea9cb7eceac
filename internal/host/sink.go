package host

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"calib-bridge/internal/models"
)

// LogSink is the default CornerSink and UpdateSink. It records what a
// renderer would draw.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink returns a sink that logs through logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{log: logger.With().Str("component", "sink").Logger()}
}

// DrawCorner logs the calibration marker position.
func (s *LogSink) DrawCorner(corner int, at models.Coordinate) {
	s.log.Info().Int("corner", corner).Int("x", at.X).Int("y", at.Y).Msg("draw calibration corner")
}

// HandleUpdate logs an update payload, decoded as a target when it has that shape.
func (s *LogSink) HandleUpdate(payload string) {
	target, err := ParseTarget(payload)
	if err != nil {
		s.log.Debug().Str("payload", payload).Msg("processing update data")
		return
	}
	s.log.Info().
		Float64("x", target.X).
		Float64("y", target.Y).
		Float64("z", target.Z).
		Msg("processing target update")
}

// ParseTarget decodes an "x,y,z" payload.
func ParseTarget(payload string) (models.Target, error) {
	parts := strings.Split(strings.TrimSpace(payload), ",")
	if len(parts) != 3 {
		return models.Target{}, fmt.Errorf("target payload %q: want 3 fields, got %d", payload, len(parts))
	}

	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return models.Target{}, fmt.Errorf("target payload %q field %d: %w", payload, i, err)
		}
		vals[i] = v
	}
	return models.Target{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
