package spatial

import (
	"context"
	"time"

	"galnav/internal/graph"
	"galnav/internal/metrics"
	"galnav/internal/route"
)

// Instrument wraps an oracle so every lookup is counted and timed under the
// given backend label.
func Instrument[T graph.Locatable](backend string, next route.Oracle[T]) route.Oracle[T] {
	return route.OracleFunc[T](func(ctx context.Context, center graph.Position, radius float64) ([]T, error) {
		start := time.Now()
		systems, err := next.Neighbors(ctx, center, radius)
		metrics.OracleDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.OracleCalls.WithLabelValues(backend, "error").Inc()
			return nil, err
		}
		metrics.OracleCalls.WithLabelValues(backend, "ok").Inc()
		metrics.OracleResultSize.WithLabelValues(backend).Observe(float64(len(systems)))
		return systems, nil
	})
}
