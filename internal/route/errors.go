package route

import (
	"errors"
	"fmt"

	"galnav/internal/graph"
)

// ErrInvalidRange is returned for a jump range that is not a positive finite number.
var ErrInvalidRange = errors.New("route: jump range must be a positive finite number")

// ErrInvalidPosition is returned when a search endpoint has a non-finite coordinate.
var ErrInvalidPosition = errors.New("route: endpoint position must be finite")

// IsInvalidInput reports whether err rejects the arguments of a search.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidRange) || errors.Is(err, ErrInvalidPosition)
}

// OracleError reports a neighbor lookup that could not complete.
// It aborts the search; it is never reported as "no route".
type OracleError struct {
	Center graph.Position
	Radius float64
	Err    error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("route: neighbor lookup at (%.2f, %.2f, %.2f) within %.2f ly failed: %v",
		e.Center.X, e.Center.Y, e.Center.Z, e.Radius, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

// IsOracleFailure reports whether err was caused by a failed neighbor lookup.
func IsOracleFailure(err error) bool {
	var oe *OracleError
	return errors.As(err, &oe)
}
