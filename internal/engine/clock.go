package engine

import "time"

// Clock supplies wall time for timestamps, heartbeats and the server check
// cool-down. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the real time.
var SystemClock Clock = systemClock{}
