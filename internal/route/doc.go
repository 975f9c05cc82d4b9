// Package route finds minimal-jump paths between star systems.
//
// The galaxy is never materialized as a graph. Adjacency is discovered on
// demand: every time the search expands a system it asks an Oracle for all
// systems within the jump range of that system's position. Edges cost one
// jump regardless of their length.
//
// The entry point is Finder.RouteTo. It runs an A*-style best-first search
// ordered by g+h, where h is weight*ceil(distance/range). The weight is a
// tuning knob: 1 is the historical default, 0 degrades to uniform-cost
// search, and anything above 1 is inadmissible and trades route optimality
// for fewer oracle round trips.
//
// Three outcomes are kept apart:
//
//   - found == true: the route is returned.
//   - found == false, err == nil: no route exists within the explored
//     frontier, or a configured expansion/time bound was hit (Route.Truncated).
//   - err != nil: the oracle failed (IsOracleFailure), the input was invalid
//     (ErrInvalidRange), or the caller's context ended.
package route
