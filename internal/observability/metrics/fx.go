package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Module registers the scheduler metrics on the default registry.
var Module = fx.Module("metrics",
	fx.Provide(func() *SchedulerMetrics {
		return NewSchedulerMetrics(prometheus.DefaultRegisterer)
	}),
)
