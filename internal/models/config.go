package models

import "time"

// Config holds all configurable server parameters, typically loaded from a JSON file.
type Config struct {
	Host            string        `json:"host"`             // Interface to bind, empty for all
	Port            int           `json:"port"`             // TCP port to listen on
	ReadTimeout     time.Duration `json:"read_timeout"`     // Per-read deadline on each connection, 0 disables
	ShutdownTimeout time.Duration `json:"shutdown_timeout"` // Bounded wait for handlers during shutdown
	TickInterval    time.Duration `json:"tick_interval"`    // Host drain period
	RateLimit       float64       `json:"rate_limit"`       // Lines per second per connection, 0 is unlimited
	RateBurst       int           `json:"rate_burst"`
	LogLevel        string        `json:"log_level"` // debug, info, warn, error
	PrettyLogs      bool          `json:"pretty_logs"`
}

// Coordinate is a screen position in pixels.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Target is a tracked object position reported by the vision client once
// calibration is done. Payloads look like "412.00,233.50,0.87".
type Target struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}
