package protocol

import (
	"strconv"

	"github.com/rs/zerolog"

	"calib-bridge/internal/models"
	"calib-bridge/internal/network"
)

// CornerSink receives the resolved coordinate of each accepted corner.
// The host draws the calibration marker there.
type CornerSink interface {
	DrawCorner(corner int, at models.Coordinate)
}

// Calibration tracks the alternating corner/confirmation handshake.
// It is not safe for concurrent use.
type Calibration struct {
	cornersProcessed int
	expectingCorner  bool

	sink CornerSink
	log  zerolog.Logger
}

// NewCalibration starts a handshake that expects a corner token first.
func NewCalibration(sink CornerSink, logger zerolog.Logger) *Calibration {
	return &Calibration{
		expectingCorner: true,
		sink:            sink,
		log:             logger,
	}
}

// CornersProcessed is the number of corner tokens accepted so far.
func (c *Calibration) CornersProcessed() int { return c.cornersProcessed }

// ExpectingCorner reports whether the next token is read as a corner index.
func (c *Calibration) ExpectingCorner() bool { return c.expectingCorner }

// ReceiveRandomCalibration consumes one token and reports whether the handshake is complete.
//
// The expectation flips after every token that does not complete the
// handshake, including a corner token that fails to parse.
func (c *Calibration) ReceiveRandomCalibration(line string) bool {
	if c.expectingCorner {
		numberStr := network.TrimCorner(line)
		corner, err := strconv.Atoi(numberStr)
		if err != nil {
			c.log.Error().Str("input", line).Err(err).Msg("failed to parse corner number")
		} else if c.AcceptCorner(corner) {
			return true
		}
	} else {
		c.ReceiveConfirmation(line)
	}
	c.expectingCorner = !c.expectingCorner
	return false
}

// ReceiveConfirmation accepts any confirmation token.
func (c *Calibration) ReceiveConfirmation(token string) {
	c.log.Debug().Str("token", token).Msg("received confirmation")
}

// AcceptCorner counts a corner and forwards its coordinate to the sink when the index is known.
// It returns true once CompletionThreshold corners have been counted.
func (c *Calibration) AcceptCorner(corner int) bool {
	if at, ok := CornerPosition(corner); ok {
		c.log.Info().Int("corner", corner).Int("x", at.X).Int("y", at.Y).Msg("drawing calibration point")
		if c.sink != nil {
			c.sink.DrawCorner(corner, at)
		}
	} else {
		c.log.Warn().Int("corner", corner).Msg("corner has no screen position")
	}

	c.cornersProcessed++
	return c.cornersProcessed == CompletionThreshold
}
