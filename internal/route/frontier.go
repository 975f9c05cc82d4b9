package route

// frontierItem is one open-set entry, keyed by system address.
type frontierItem struct {
	addr  int64
	g     float64 // cost from start
	h     float64 // heuristic to goal
	f     float64 // g + h
	seq   uint64  // insertion order, last tie-breaker
	index int     // position in the heap, maintained by Swap/Push
}

// frontier is a min-heap on f, then h, then insertion order.
type frontier []*frontierItem

func (q frontier) Len() int { return len(q) }

func (q frontier) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.f != b.f {
		return a.f < b.f
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return a.seq < b.seq
}

func (q frontier) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *frontier) Push(x any) {
	item := x.(*frontierItem)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *frontier) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}
