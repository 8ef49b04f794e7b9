// Package progress carries best-effort progress reporting out of the
// generation pipeline. Reporters are owned by the caller; the pipeline never
// depends on what they do with a report.
package progress

import (
	"log/slog"
	"math"
)

// Reporter receives progress as a percentage in [0,100] plus a message.
type Reporter interface {
	Report(percent float64, message string)
}

// Func adapts a plain function to Reporter.
type Func func(percent float64, message string)

// Report implements Reporter.
func (f Func) Report(percent float64, message string) {
	f(percent, message)
}

// Nop discards every report.
var Nop Reporter = Func(func(float64, string) {})

// OrNop returns r, or Nop when r is nil.
func OrNop(r Reporter) Reporter {
	if r == nil {
		return Nop
	}
	return r
}

// Span maps a child's 0..100 range onto lo..hi of the parent.
func Span(parent Reporter, lo, hi float64) Reporter {
	parent = OrNop(parent)
	return Func(func(percent float64, message string) {
		parent.Report(lo+(hi-lo)*Clamp(percent)/100, message)
	})
}

// Multi fans each report out to every non-nil reporter in order.
func Multi(reporters ...Reporter) Reporter {
	active := make([]Reporter, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			active = append(active, r)
		}
	}
	return Func(func(percent float64, message string) {
		for _, r := range active {
			r.Report(percent, message)
		}
	})
}

// Logger writes every report as a debug record.
func Logger(logger *slog.Logger) Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return Func(func(percent float64, message string) {
		logger.Debug("Progress",
			slog.Float64("percent", math.Round(percent*10)/10),
			slog.String("message", message),
		)
	})
}

// Clamp bounds percent to [0,100]; NaN becomes 0.
func Clamp(percent float64) float64 {
	switch {
	case math.IsNaN(percent), percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}
