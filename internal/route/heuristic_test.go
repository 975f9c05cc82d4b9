package route

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/assert"

	"galnav/internal/graph"
)

func TestJumpHeuristic_CeilOfDistanceOverRange(t *testing.T) {
	goal := graph.Position{}
	tests := []struct {
		name   string
		weight float64
		from   graph.Position
		rng    float64
		want   float64
	}{
		{name: "at goal", weight: 1, from: graph.Position{}, rng: 10, want: 0},
		{name: "exact multiple", weight: 1, from: graph.Position{X: 20}, rng: 10, want: 2},
		{name: "rounds up", weight: 1, from: graph.Position{X: 20.5}, rng: 10, want: 3},
		{name: "inside one jump", weight: 1, from: graph.Position{Y: 0.1}, rng: 10, want: 1},
		{name: "weighted", weight: 2.5, from: graph.Position{Z: 25}, rng: 10, want: 7.5},
		{name: "zero weight", weight: 0, from: graph.Position{X: 1000}, rng: 10, want: 0},
		{name: "negative weight", weight: -1, from: graph.Position{X: 1000}, rng: 10, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JumpHeuristic(tt.weight)(tt.from, goal, tt.rng)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWithHeuristic_Overrides(t *testing.T) {
	calls := 0
	h := func(from, goal graph.Position, r float64) float64 {
		calls++
		return 0
	}
	a, b := sys(1, 0, 0, 0), sys(2, 3, 0, 0)
	o := scriptedOracle{a.Pos: {b}}
	_, found, err := NewFinder[graph.System](o, WithHeuristic(h), WithHeuristicWeight(5)).RouteTo(t.Context(), a, b, 5)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Positive(t, calls)
}

func TestFrontier_OrdersByFThenHThenInsertion(t *testing.T) {
	var q frontier
	heap.Init(&q)
	items := []*frontierItem{
		{addr: 1, f: 5, h: 3, seq: 0},
		{addr: 2, f: 4, h: 4, seq: 1},
		{addr: 3, f: 5, h: 1, seq: 2},
		{addr: 4, f: 5, h: 1, seq: 3},
		{addr: 5, f: 2, h: 0, seq: 4},
	}
	for _, it := range items {
		heap.Push(&q, it)
	}
	var order []int64
	for q.Len() > 0 {
		order = append(order, heap.Pop(&q).(*frontierItem).addr)
	}
	assert.Equal(t, []int64{5, 2, 3, 4, 1}, order)
}

func TestFrontier_FixAfterDecrease(t *testing.T) {
	var q frontier
	a := &frontierItem{addr: 1, f: 10}
	b := &frontierItem{addr: 2, f: 5, seq: 1}
	heap.Push(&q, a)
	heap.Push(&q, b)

	a.f = 1
	heap.Fix(&q, a.index)
	assert.Equal(t, int64(1), heap.Pop(&q).(*frontierItem).addr)
	assert.Equal(t, -1, a.index)
}
