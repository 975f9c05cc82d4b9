package graph

import (
	"math"
	"testing"
)

func TestDistance_Euclidean(t *testing.T) {
	a := System{Addr: 1, Pos: Position{0, 0, 0}}
	b := System{Addr: 2, Pos: Position{3, 4, 12}}
	if got := Distance(a, b); got != 13 {
		t.Errorf("Distance = %v, want 13", got)
	}
	if got := Distance(b, a); got != 13 {
		t.Errorf("Distance reversed = %v, want 13", got)
	}
	if got := Distance(a, a); got != 0 {
		t.Errorf("Distance to self = %v, want 0", got)
	}
}

func TestSameNode_IgnoresPosition(t *testing.T) {
	fresh := System{Addr: 10477373803, Name: "Sol", Pos: Position{0, 0, 0}}
	stale := System{Addr: 10477373803, Name: "Sol", Pos: Position{0.5, 0, 0}}
	if !SameNode(fresh, stale) {
		t.Error("systems with equal address should be the same node")
	}
	other := System{Addr: 1, Pos: Position{0, 0, 0}}
	if SameNode(fresh, other) {
		t.Error("systems with different address should differ even at the same position")
	}
}

func TestPosition_Valid(t *testing.T) {
	tests := []struct {
		name string
		pos  Position
		want bool
	}{
		{name: "origin", pos: Position{}, want: true},
		{name: "negative", pos: Position{-33.65625, 20.78125, -26.6875}, want: true},
		{name: "nan", pos: Position{X: math.NaN()}, want: false},
		{name: "inf", pos: Position{Z: math.Inf(1)}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pos.Valid(); got != tt.want {
				t.Fatalf("Valid(%v) = %v, want %v", tt.pos, got, tt.want)
			}
		})
	}
}
