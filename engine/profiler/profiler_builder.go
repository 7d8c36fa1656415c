package profiler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ProfilerBuilderOption is a functional option for configuring a Profiler via NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithUpdateInterval sets how often Tick logs a summary and refreshes the rate gauges.
//
// Parameters:
//   - d: the interval
//
// Returns:
//   - ProfilerBuilderOption: a function that sets the interval
func WithUpdateInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.updateInterval = d
	}
}

// WithLogger sets the logger used for the periodic summary.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - ProfilerBuilderOption: a function that sets the logger
func WithLogger(l *zap.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.log = l
	}
}

// WithRegistry registers the profiler's metrics with an existing registry instead of a new one.
//
// Parameters:
//   - reg: the registry
//
// Returns:
//   - ProfilerBuilderOption: a function that sets the registry
func WithRegistry(reg *prometheus.Registry) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.reg = reg
	}
}
