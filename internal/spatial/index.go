package spatial

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/tidwall/btree"
	"gonum.org/v1/gonum/spatial/kdtree"

	"galnav/internal/graph"
)

// Index is an immutable in-memory copy of the system catalog: a balanced
// k-d tree over positions for radius queries and a B-tree over lowercase
// names for lookups and autocomplete. Safe for concurrent reads.
type Index struct {
	tree   *kdtree.Tree
	byAddr map[int64]graph.System
	names  *btree.BTreeG[nameEntry]
}

type nameEntry struct {
	key  string // lowercase name
	addr int64
}

func nameLess(a, b nameEntry) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.addr < b.addr
}

// NewIndex builds an index. Systems with non-finite coordinates are dropped;
// for repeated addresses the most recently updated record wins.
func NewIndex(systems []graph.System) *Index {
	byAddr := make(map[int64]graph.System, len(systems))
	for _, s := range systems {
		if !s.Pos.Valid() {
			continue
		}
		if prev, ok := byAddr[s.Addr]; ok && prev.UpdatedAt.After(s.UpdatedAt) {
			continue
		}
		byAddr[s.Addr] = s
	}

	pts := make(points, 0, len(byAddr))
	names := btree.NewBTreeG[nameEntry](nameLess)
	for _, s := range byAddr {
		pts = append(pts, point{sys: s})
		if s.Name != "" {
			names.Set(nameEntry{key: strings.ToLower(s.Name), addr: s.Addr})
		}
	}
	// Map iteration order is random; sort so the tree shape is reproducible.
	sort.Slice(pts, func(i, j int) bool { return pts[i].sys.Addr < pts[j].sys.Addr })

	idx := &Index{byAddr: byAddr, names: names}
	if len(pts) > 0 {
		idx.tree = kdtree.New(pts, false)
	}
	return idx
}

// Len returns the number of indexed systems.
func (idx *Index) Len() int { return len(idx.byAddr) }

// Get returns the system with the given address.
func (idx *Index) Get(addr int64) (graph.System, bool) {
	s, ok := idx.byAddr[addr]
	return s, ok
}

// Lookup resolves a system name case-insensitively. When several systems
// share a name the lowest address wins.
func (idx *Index) Lookup(name string) (graph.System, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return graph.System{}, false
	}
	var found graph.System
	var ok bool
	idx.names.Ascend(nameEntry{key: key, addr: math.MinInt64}, func(e nameEntry) bool {
		if e.key == key {
			found, ok = idx.byAddr[e.addr]
		}
		return false
	})
	return found, ok
}

// Complete returns up to limit systems whose name starts with prefix, in name order.
func (idx *Index) Complete(prefix string, limit int) []graph.System {
	key := strings.ToLower(strings.TrimSpace(prefix))
	if key == "" || limit <= 0 {
		return nil
	}
	var out []graph.System
	idx.names.Ascend(nameEntry{key: key, addr: math.MinInt64}, func(e nameEntry) bool {
		if !strings.HasPrefix(e.key, key) {
			return false
		}
		out = append(out, idx.byAddr[e.addr])
		return len(out) < limit
	})
	return out
}

// Neighbors implements route.Oracle: every system within radius of center,
// ordered by address.
func (idx *Index) Neighbors(ctx context.Context, center graph.Position, radius float64) ([]graph.System, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if idx.tree == nil || idx.tree.Root == nil || radius < 0 {
		return nil, nil
	}
	// point.Distance is squared, so the keeper bound is too.
	keep := kdtree.NewDistKeeper(radius * radius)
	idx.tree.NearestSet(keep, point{sys: graph.System{Pos: center}})

	out := make([]graph.System, 0, keep.Len())
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue // keeper sentinel
		}
		out = append(out, c.Comparable.(point).sys)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out, nil
}

// point adapts a System to kdtree.Comparable.
type point struct {
	sys graph.System
}

func (p point) coord(d kdtree.Dim) float64 {
	switch d {
	case 0:
		return p.sys.Pos.X
	case 1:
		return p.sys.Pos.Y
	default:
		return p.sys.Pos.Z
	}
}

// Compare returns the signed distance of p from the plane through c perpendicular to d.
func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coord(d) - c.(point).coord(d)
}

func (p point) Dims() int { return 3 }

// Distance returns the squared Euclidean distance, as kdtree expects.
func (p point) Distance(c kdtree.Comparable) float64 {
	q := c.(point).sys.Pos
	dx, dy, dz := p.sys.Pos.X-q.X, p.sys.Pos.Y-q.Y, p.sys.Pos.Z-q.Z
	return dx*dx + dy*dy + dz*dz
}

// points implements kdtree.Interface.
type points []point

func (p points) Index(i int) kdtree.Comparable         { return p[i] }
func (p points) Len() int                              { return len(p) }
func (p points) Pivot(d kdtree.Dim) int                { return plane{points: p, dim: d}.Pivot() }
func (p points) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane sorts points along one dimension for median selection.
type plane struct {
	points
	dim kdtree.Dim
}

func (p plane) Less(i, j int) bool { return p.points[i].coord(p.dim) < p.points[j].coord(p.dim) }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Swap(i, j int)      { p.points[i], p.points[j] = p.points[j], p.points[i] }

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
