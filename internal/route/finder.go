package route

import (
	"container/heap"
	"context"
	"errors"
	"math"
	"time"

	"galnav/internal/graph"
)

// jumpCost is the cost of every edge. Travel time is dominated by the number
// of jumps, not by how far each one goes.
const jumpCost = 1.0

// DefaultMaxExpansions bounds a search that would otherwise grow without
// limit (disconnected target, tiny range against galactic distances).
const DefaultMaxExpansions = 100_000

// Options configures a Finder.
type Options struct {
	HeuristicWeight float64
	Heuristic       Heuristic // overrides HeuristicWeight when set
	MaxExpansions   int       // 0 = unbounded
	Timeout         time.Duration
	Workers         int // > 1 enables batched parallel neighbor fetches
}

// Option is a function that modifies Options.
type Option func(*Options)

// WithHeuristicWeight scales the jump heuristic. Negative values are treated as 0.
func WithHeuristicWeight(w float64) Option {
	return func(o *Options) {
		if w < 0 || math.IsNaN(w) {
			w = 0
		}
		o.HeuristicWeight = w
	}
}

// WithHeuristic replaces the jump heuristic entirely.
func WithHeuristic(h Heuristic) Option {
	return func(o *Options) { o.Heuristic = h }
}

// WithMaxExpansions caps the number of oracle-backed expansions per search.
// Use 0 to disable the cap.
func WithMaxExpansions(n int) Option {
	return func(o *Options) {
		if n < 0 {
			n = 0
		}
		o.MaxExpansions = n
	}
}

// WithTimeout bounds the wall-clock time of one search. Hitting it ends the
// search as "no route" with Route.Truncated set, not as an error.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithWorkers sets how many frontier nodes may have their neighbors fetched
// concurrently. 1 (the default) keeps the search strictly sequential.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n < 1 {
			n = 1
		}
		o.Workers = n
	}
}

// Finder computes routes over any node type exposing an address and a position.
// A Finder holds no per-search state and is safe for concurrent use as long
// as its Oracle is.
type Finder[T graph.Locatable] struct {
	oracle Oracle[T]
	opts   Options
}

// NewFinder returns a Finder that discovers adjacency through oracle.
func NewFinder[T graph.Locatable](oracle Oracle[T], options ...Option) *Finder[T] {
	opts := Options{
		HeuristicWeight: 1,
		MaxExpansions:   DefaultMaxExpansions,
		Workers:         1,
	}
	for _, o := range options {
		o(&opts)
	}
	return &Finder[T]{oracle: oracle, opts: opts}
}

// Options returns the effective configuration.
func (f *Finder[T]) Options() Options { return f.opts }

// RouteTo searches for a minimal-jump path from start to end where every hop
// is at most jumpRange light-years. See the package documentation for how
// the three outcomes are reported.
func (f *Finder[T]) RouteTo(ctx context.Context, start, end T, jumpRange float64) (Route[T], bool, error) {
	if err := validRange(jumpRange); err != nil {
		return Route[T]{}, false, err
	}
	if !start.Position().Valid() || !end.Position().Valid() {
		return Route[T]{}, false, ErrInvalidPosition
	}
	if graph.SameNode(start, end) {
		return Route[T]{Path: []T{start}}, true, nil
	}
	if err := ctx.Err(); err != nil {
		return Route[T]{}, false, err
	}

	searchCtx := ctx
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	s := newSearch(f, start, end, jumpRange)
	route, found, err := s.run(searchCtx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) && searchCtx.Err() != nil {
		// Our own time bound, not the caller's.
		route.Truncated = true
		return route, false, nil
	}
	return route, found, err
}

func validRange(r float64) error {
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return ErrInvalidRange
	}
	return nil
}

// search is the state of one RouteTo call: open set, closed set, best known
// costs and back-pointers. It is discarded when the call returns.
type search[T graph.Locatable] struct {
	oracle    Oracle[T]
	opts      Options
	h         Heuristic
	goal      int64
	goalPos   graph.Position
	start     int64
	jumpRange float64

	nodes    map[int64]T // first value seen per address
	open     frontier
	openIdx  map[int64]*frontierItem
	closed   map[int64]bool
	g        map[int64]float64
	cameFrom map[int64]int64
	seq      uint64

	expanded int
	calls    int
}

func newSearch[T graph.Locatable](f *Finder[T], start, end T, jumpRange float64) *search[T] {
	h := f.opts.Heuristic
	if h == nil {
		h = JumpHeuristic(f.opts.HeuristicWeight)
	}
	s := &search[T]{
		oracle:    f.oracle,
		opts:      f.opts,
		h:         h,
		goal:      end.Address(),
		goalPos:   end.Position(),
		start:     start.Address(),
		jumpRange: jumpRange,
		nodes:     map[int64]T{start.Address(): start, end.Address(): end},
		openIdx:   make(map[int64]*frontierItem),
		closed:    make(map[int64]bool),
		g:         map[int64]float64{start.Address(): 0},
		cameFrom:  make(map[int64]int64),
	}
	heap.Init(&s.open)
	s.push(s.start, 0, s.estimate(start.Position()))
	return s
}

func (s *search[T]) estimate(p graph.Position) float64 {
	return s.h(p, s.goalPos, s.jumpRange)
}

func (s *search[T]) push(addr int64, g, h float64) {
	item := &frontierItem{addr: addr, g: g, h: h, f: g + h, seq: s.seq}
	s.seq++
	heap.Push(&s.open, item)
	s.openIdx[addr] = item
}

func (s *search[T]) pop() *frontierItem {
	item := heap.Pop(&s.open).(*frontierItem)
	delete(s.openIdx, item.addr)
	return item
}

func (s *search[T]) limitReached() bool {
	return s.opts.MaxExpansions > 0 && s.expanded >= s.opts.MaxExpansions
}

func (s *search[T]) run(ctx context.Context) (Route[T], bool, error) {
	if s.opts.Workers > 1 {
		return s.runBatched(ctx)
	}
	for s.open.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return s.partial(), false, err
		}
		item := s.pop()
		if s.closed[item.addr] {
			continue
		}
		if item.addr == s.goal {
			return s.build(item.g), true, nil
		}
		if s.limitReached() {
			r := s.partial()
			r.Truncated = true
			return r, false, nil
		}
		s.closed[item.addr] = true
		s.expanded++

		s.calls++
		neighbors, err := query(ctx, s.oracle, s.nodes[item.addr].Position(), s.jumpRange)
		if err != nil {
			return s.partial(), false, err
		}
		s.relax(item, neighbors)
	}
	return s.partial(), false, nil
}

// relax offers every neighbor of a freshly expanded node to the open set.
func (s *search[T]) relax(from *frontierItem, neighbors []T) {
	origin := s.nodes[from.addr]
	seen := make(map[int64]struct{}, len(neighbors))
	for _, n := range neighbors {
		addr := n.Address()
		if addr == from.addr || s.closed[addr] {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}

		node, known := s.nodes[addr]
		if !known {
			if !n.Position().Valid() {
				continue
			}
			node = n
		}
		// The oracle is trusted for membership, not for the radius: a hop
		// longer than the range would make the route unflyable.
		if graph.Distance(origin, node) > s.jumpRange {
			continue
		}
		if !known {
			s.nodes[addr] = node
		}

		g := from.g + jumpCost
		if prev, ok := s.g[addr]; ok && g >= prev {
			continue
		}
		s.g[addr] = g
		s.cameFrom[addr] = from.addr

		h := s.estimate(node.Position())
		if item, ok := s.openIdx[addr]; ok {
			item.g, item.h, item.f = g, h, g+h
			heap.Fix(&s.open, item.index)
			continue
		}
		s.push(addr, g, h)
	}
}

func (s *search[T]) build(cost float64) Route[T] {
	addrs := []int64{s.goal}
	for cur := s.goal; cur != s.start; {
		prev, ok := s.cameFrom[cur]
		if !ok {
			break
		}
		addrs = append(addrs, prev)
		cur = prev
	}
	path := make([]T, len(addrs))
	for i, addr := range addrs {
		path[len(addrs)-1-i] = s.nodes[addr]
	}
	return Route[T]{
		Path:        path,
		Cost:        cost,
		Expanded:    s.expanded,
		OracleCalls: s.calls,
	}
}

func (s *search[T]) partial() Route[T] {
	return Route[T]{Expanded: s.expanded, OracleCalls: s.calls}
}
