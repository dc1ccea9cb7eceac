package protocol

import "calib-bridge/internal/models"

// CompletionThreshold is the corner count at which the handshake completes.
// It is one past the number of table entries.
const CompletionThreshold = 5

var cornerPositions = map[int]models.Coordinate{
	1: {X: 0, Y: 0},
	2: {X: 1920, Y: 0},
	3: {X: 0, Y: 1080},
	4: {X: 1920, Y: 1080},
}

// CornerPosition resolves a corner index (1-4) to its screen coordinate.
func CornerPosition(corner int) (models.Coordinate, bool) {
	c, ok := cornerPositions[corner]
	return c, ok
}
