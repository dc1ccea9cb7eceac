package protocol

import "github.com/rs/zerolog"

// Mode selects how the interpreter reads incoming lines.
type Mode int

const (
	ModeCalibration Mode = iota
	ModeUpdate
)

func (m Mode) String() string {
	switch m {
	case ModeCalibration:
		return "calibration"
	case ModeUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// UpdateSink receives every line once calibration has finished.
type UpdateSink interface {
	HandleUpdate(payload string)
}

// Interpreter routes dequeued lines to the calibration handshake and, after
// it completes, to the update sink. It must be driven from a single goroutine.
type Interpreter struct {
	mode        Mode
	calibration *Calibration

	corners CornerSink
	updates UpdateSink
	log     zerolog.Logger
}

// NewInterpreter returns an interpreter in calibration mode.
func NewInterpreter(corners CornerSink, updates UpdateSink, logger zerolog.Logger) *Interpreter {
	in := &Interpreter{
		corners: corners,
		updates: updates,
		log:     logger.With().Str("component", "interpreter").Logger(),
	}
	in.Restart()
	return in
}

// Restart discards any calibration progress and goes back to calibration mode.
func (in *Interpreter) Restart() {
	in.calibration = NewCalibration(in.corners, in.log)
	in.mode = ModeCalibration
	in.log.Info().Msg("started calibration mode")
}

// Mode is the current interpretation mode.
func (in *Interpreter) Mode() Mode { return in.mode }

// Calibration exposes the handshake state. It is frozen once in update mode.
func (in *Interpreter) Calibration() *Calibration { return in.calibration }

// ReceiveInput handles one dequeued line.
func (in *Interpreter) ReceiveInput(line string) {
	in.log.Debug().Str("input", line).Msg("received input")

	if in.mode == ModeCalibration {
		if in.calibration.ReceiveRandomCalibration(line) {
			in.mode = ModeUpdate
			in.log.Info().Int("corners", in.calibration.CornersProcessed()).Msg("switched to update mode")
		}
	}

	if in.mode == ModeUpdate && in.updates != nil {
		in.updates.HandleUpdate(line)
	}
}
