package route

import (
	"math"

	"galnav/internal/graph"
)

// Heuristic estimates the remaining cost, in jumps, from a position to the goal.
type Heuristic func(from, goal graph.Position, jumpRange float64) float64

// JumpHeuristic returns weight * ceil(distance / jumpRange).
//
// With weight 1 this is the estimate the planner has always shipped with.
// Larger weights make the search greedier: fewer expansions, but the route
// is no longer guaranteed to have the minimum number of jumps.
func JumpHeuristic(weight float64) Heuristic {
	if weight <= 0 {
		return zeroHeuristic
	}
	return func(from, goal graph.Position, jumpRange float64) float64 {
		return weight * math.Ceil(from.DistanceTo(goal)/jumpRange)
	}
}

func zeroHeuristic(graph.Position, graph.Position, float64) float64 { return 0 }
