package route

import (
	"context"

	"galnav/internal/graph"
)

// Oracle answers spatial range queries: every known system within radius
// light-years of center. Results may come in any order, may include the
// system at center, and may differ between calls if the backing data
// changed. Implementations are expected to be slow (database or network)
// and must honor ctx.
type Oracle[T graph.Locatable] interface {
	Neighbors(ctx context.Context, center graph.Position, radius float64) ([]T, error)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc[T graph.Locatable] func(ctx context.Context, center graph.Position, radius float64) ([]T, error)

// Neighbors implements Oracle.
func (f OracleFunc[T]) Neighbors(ctx context.Context, center graph.Position, radius float64) ([]T, error) {
	return f(ctx, center, radius)
}

// query runs one oracle call. A context that ended during the call wins over
// whatever error the oracle produced, so cancellation is not misreported as
// an I/O failure.
func query[T graph.Locatable](ctx context.Context, o Oracle[T], center graph.Position, radius float64) ([]T, error) {
	got, err := o.Neighbors(ctx, center, radius)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &OracleError{Center: center, Radius: radius, Err: err}
	}
	return got, nil
}
