package route

import (
	"context"

	"galnav/internal/graph"
)

// Reach is a system found by Reachable and the fewest jumps needed to get there.
type Reach[T graph.Locatable] struct {
	Node  T
	Jumps int
}

// Reachable returns every system reachable from origin within maxJumps jumps
// of at most jumpRange light-years, keyed by address. The origin is included
// at 0 jumps. limit caps the number of systems returned (0 = no cap); once
// it is hit the walk stops early.
func Reachable[T graph.Locatable](ctx context.Context, oracle Oracle[T], origin T, jumpRange float64, maxJumps, limit int) (map[int64]Reach[T], error) {
	if err := validRange(jumpRange); err != nil {
		return nil, err
	}
	if !origin.Position().Valid() {
		return nil, ErrInvalidPosition
	}
	result := map[int64]Reach[T]{origin.Address(): {Node: origin}}
	if limit > 0 && len(result) >= limit {
		return result, nil
	}

	queue := []T{origin}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]
		dist := result[current.Address()].Jumps
		if dist >= maxJumps {
			continue
		}
		neighbors, err := query(ctx, oracle, current.Position(), jumpRange)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if _, visited := result[n.Address()]; visited {
				continue
			}
			if !n.Position().Valid() || graph.Distance(current, n) > jumpRange {
				continue
			}
			result[n.Address()] = Reach[T]{Node: n, Jumps: dist + 1}
			if limit > 0 && len(result) >= limit {
				return result, nil
			}
			queue = append(queue, n)
		}
	}
	return result, nil
}
