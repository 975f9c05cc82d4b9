package route

import "galnav/internal/graph"

// Route is the result of one search. Path runs from start to end inclusive
// and Cost is the number of jumps. The caller owns it.
type Route[T graph.Locatable] struct {
	Path        []T
	Cost        float64
	Expanded    int  // nodes whose neighbors were fetched
	OracleCalls int  // neighbor lookups issued
	Truncated   bool // search stopped at an expansion or time bound
}

// Jumps returns the number of hops in the route.
func (r Route[T]) Jumps() int {
	if len(r.Path) == 0 {
		return 0
	}
	return len(r.Path) - 1
}

// Hop is one leg of a route.
type Hop[T graph.Locatable] struct {
	From     T
	To       T
	Distance float64
}

// Hops returns each leg with its straight-line length.
func (r Route[T]) Hops() []Hop[T] {
	if len(r.Path) < 2 {
		return nil
	}
	hops := make([]Hop[T], 0, len(r.Path)-1)
	for i := 1; i < len(r.Path); i++ {
		hops = append(hops, Hop[T]{
			From:     r.Path[i-1],
			To:       r.Path[i],
			Distance: graph.Distance(r.Path[i-1], r.Path[i]),
		})
	}
	return hops
}

// TotalDistance sums the hop lengths in light-years.
func (r Route[T]) TotalDistance() float64 {
	var total float64
	for _, h := range r.Hops() {
		total += h.Distance
	}
	return total
}
