package graph

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Position is a point in galactic coordinates, in light-years.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec converts p to a gonum vector.
func (p Position) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// Valid reports whether every coordinate is a finite number.
func (p Position) Valid() bool {
	for _, c := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// DistanceTo returns the straight-line distance between p and q.
func (p Position) DistanceTo(q Position) float64 {
	return r3.Norm(r3.Sub(p.Vec(), q.Vec()))
}

// Locatable is anything the route finder can treat as a node: a stable
// system address plus a position. Identity is the address alone.
type Locatable interface {
	Address() int64
	Position() Position
}

// System is a star system as stored in the database.
type System struct {
	Addr      int64     `json:"address"`
	Name      string    `json:"name"`
	Pos       Position  `json:"position"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Address implements Locatable.
func (s System) Address() int64 { return s.Addr }

// Position implements Locatable.
func (s System) Position() Position { return s.Pos }

// Distance returns the straight-line distance in light-years between a and b.
func Distance(a, b Locatable) float64 {
	return a.Position().DistanceTo(b.Position())
}

// SameNode reports whether a and b are the same system. Positions are ignored
// so a stale fetch never splits one system into two nodes.
func SameNode(a, b Locatable) bool {
	return a.Address() == b.Address()
}
