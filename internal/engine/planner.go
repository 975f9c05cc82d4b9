// Package engine ties the catalog store, the spatial index and the route
// finder together. Both the HTTP API and the CLI plan routes through it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"galnav/internal/config"
	"galnav/internal/db"
	"galnav/internal/graph"
	"galnav/internal/logger"
	"galnav/internal/metrics"
	"galnav/internal/route"
	"galnav/internal/spatial"
)

// ErrUnknownSystem is returned when a name or address matches no system.
var ErrUnknownSystem = errors.New("unknown system")

// Planner resolves systems and runs searches against the best available
// oracle: the SQL store until the in-memory index has loaded, then the index
// when the memory backend is configured.
type Planner struct {
	store *db.DB
	cfg   config.OracleConfig

	mu     sync.RWMutex
	index  *spatial.Index
	cache  *spatial.Cache
	oracle route.Oracle[graph.System]
	active string
}

// NewPlanner returns a Planner serving lookups from store.
func NewPlanner(store *db.DB, cfg config.OracleConfig) *Planner {
	p := &Planner{store: store, cfg: cfg}
	p.setOracle("sql", store)
	return p
}

func (p *Planner) setOracle(backend string, next route.Oracle[graph.System]) {
	o := spatial.Instrument[graph.System](backend, next)
	var cache *spatial.Cache
	if p.cfg.CacheSize > 0 {
		cache = spatial.NewCache(o, p.cfg.CacheTTL, p.cfg.CacheSize)
		o = cache
	}
	p.mu.Lock()
	p.oracle, p.cache, p.active = o, cache, backend
	p.mu.Unlock()
}

// LoadIndex reads the whole catalog into memory. With the memory backend
// configured, searches switch to the index once it is built.
func (p *Planner) LoadIndex(ctx context.Context) error {
	start := time.Now()
	systems, err := p.store.AllSystems(ctx)
	if err != nil {
		return fmt.Errorf("load systems: %w", err)
	}
	idx := spatial.NewIndex(systems)
	p.SetIndex(idx)
	logger.Success("INDEX", fmt.Sprintf("Indexed %d systems in %v", idx.Len(), time.Since(start).Round(time.Millisecond)))
	return nil
}

// SetIndex installs a prebuilt index.
func (p *Planner) SetIndex(idx *spatial.Index) {
	p.mu.Lock()
	p.index = idx
	p.mu.Unlock()
	metrics.IndexedSystems.Set(float64(idx.Len()))
	if p.cfg.Backend == "memory" {
		p.setOracle("memory", idx)
	}
}

// Oracle returns the oracle searches currently use.
func (p *Planner) Oracle() route.Oracle[graph.System] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.oracle
}

// Status describes the planner's data sources.
type Status struct {
	Backend        string `json:"backend"`
	IndexLoaded    bool   `json:"index_loaded"`
	IndexedSystems int    `json:"indexed_systems"`
	StoredSystems  int    `json:"stored_systems"`
	CacheEntries   int    `json:"cache_entries"`
}

func (p *Planner) Status(ctx context.Context) Status {
	p.mu.RLock()
	st := Status{Backend: p.active}
	if p.index != nil {
		st.IndexLoaded = true
		st.IndexedSystems = p.index.Len()
	}
	if p.cache != nil {
		st.CacheEntries = p.cache.Len()
	}
	p.mu.RUnlock()

	if n, err := p.store.CountSystems(ctx); err == nil {
		st.StoredSystems = n
	}
	return st
}

// Resolve finds a system by name (case-insensitive) or by decimal address.
func (p *Planner) Resolve(ctx context.Context, ref string) (graph.System, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return graph.System{}, fmt.Errorf("%w: empty name", ErrUnknownSystem)
	}

	p.mu.RLock()
	idx := p.index
	p.mu.RUnlock()

	if addr, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if idx != nil {
			if s, ok := idx.Get(addr); ok {
				return s, nil
			}
		} else if s, err := p.store.GetSystem(ctx, addr); err != nil {
			return graph.System{}, err
		} else if s != nil {
			return *s, nil
		}
	}

	if idx != nil {
		if s, ok := idx.Lookup(ref); ok {
			return s, nil
		}
		return graph.System{}, fmt.Errorf("%w: %q", ErrUnknownSystem, ref)
	}
	s, err := p.store.GetSystemByName(ctx, ref)
	if err != nil {
		return graph.System{}, err
	}
	if s == nil {
		return graph.System{}, fmt.Errorf("%w: %q", ErrUnknownSystem, ref)
	}
	return *s, nil
}

// Complete returns up to limit systems whose name starts with prefix.
func (p *Planner) Complete(ctx context.Context, prefix string, limit int) ([]graph.System, error) {
	p.mu.RLock()
	idx := p.index
	p.mu.RUnlock()
	if idx != nil {
		return idx.Complete(prefix, limit), nil
	}
	return p.store.SearchSystems(ctx, prefix, limit)
}

// Plan is the outcome of a route search. Found is false when no route
// exists within the search bounds; Route.Truncated tells the two apart.
type Plan struct {
	From     graph.System
	To       graph.System
	Found    bool
	Route    route.Route[graph.System]
	Duration time.Duration
}

// FindRoute resolves both endpoints and searches with the given parameters.
// Unknown names yield ErrUnknownSystem; oracle trouble is a *route.OracleError.
func (p *Planner) FindRoute(ctx context.Context, from, to string, params config.RouteConfig) (Plan, error) {
	src, err := p.Resolve(ctx, from)
	if err != nil {
		return Plan{}, err
	}
	dst, err := p.Resolve(ctx, to)
	if err != nil {
		return Plan{}, err
	}
	return p.Route(ctx, src, dst, params)
}

// Route searches between two already resolved systems.
func (p *Planner) Route(ctx context.Context, src, dst graph.System, params config.RouteConfig) (Plan, error) {
	finder := route.NewFinder[graph.System](p.Oracle(),
		route.WithHeuristicWeight(params.HeuristicWeight),
		route.WithMaxExpansions(params.MaxExpansions),
		route.WithWorkers(params.Workers),
		route.WithTimeout(params.Timeout),
	)

	start := time.Now()
	r, found, err := finder.RouteTo(ctx, src, dst, params.JumpRange)
	plan := Plan{From: src, To: dst, Found: found, Route: r, Duration: time.Since(start)}

	metrics.Searches.WithLabelValues(outcome(r, found, err)).Inc()
	if err == nil || route.IsOracleFailure(err) {
		metrics.SearchExpansions.Observe(float64(r.Expanded))
		metrics.SearchDuration.Observe(plan.Duration.Seconds())
	}
	return plan, err
}

// Reachable lists systems within maxJumps jumps of the named origin.
func (p *Planner) Reachable(ctx context.Context, from string, jumpRange float64, maxJumps, limit int) (graph.System, []route.Reach[graph.System], error) {
	src, err := p.Resolve(ctx, from)
	if err != nil {
		return graph.System{}, nil, err
	}
	found, err := route.Reachable(ctx, p.Oracle(), src, jumpRange, maxJumps, limit)
	if err != nil {
		return src, nil, err
	}
	out := make([]route.Reach[graph.System], 0, len(found))
	for _, r := range found {
		out = append(out, r)
	}
	sortReach(out)
	return src, out, nil
}

func sortReach(rs []route.Reach[graph.System]) {
	// Fewest jumps first, then by name for stable output.
	slices.SortFunc(rs, func(a, b route.Reach[graph.System]) int {
		if a.Jumps != b.Jumps {
			return a.Jumps - b.Jumps
		}
		if c := strings.Compare(a.Node.Name, b.Node.Name); c != 0 {
			return c
		}
		switch {
		case a.Node.Addr < b.Node.Addr:
			return -1
		case a.Node.Addr > b.Node.Addr:
			return 1
		}
		return 0
	})
}

func outcome(r route.Route[graph.System], found bool, err error) string {
	switch {
	case err == nil && found:
		return "found"
	case err == nil && r.Truncated:
		return "truncated"
	case err == nil:
		return "none"
	case route.IsInvalidInput(err):
		return "invalid"
	case route.IsOracleFailure(err):
		return "oracle_error"
	default:
		return "canceled"
	}
}
