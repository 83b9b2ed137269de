package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts time for batch jobs so tests can pin the run date.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// System returns a Clock backed by the wall clock in UTC.
func System() Clock {
	return systemClock{}
}

// Module provides the system clock.
var Module = fx.Module("clock",
	fx.Provide(func() Clock { return System() }),
)
