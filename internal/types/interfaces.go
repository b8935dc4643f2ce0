package types

import "time"

// Clock abstracts time.Now for deterministic testing of time-dependent logic.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by time.Now.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Logger is the minimal structured logging interface used where injecting a
// *slog.Logger directly would couple packages to the concrete handler.
// *slog.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
