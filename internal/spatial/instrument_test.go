package spatial

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galnav/internal/graph"
	"galnav/internal/metrics"
	"galnav/internal/route"
)

func TestInstrument_CountsOutcomes(t *testing.T) {
	ok := metrics.OracleCalls.WithLabelValues("instrument-test", "ok")
	failed := metrics.OracleCalls.WithLabelValues("instrument-test", "error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	fail := false
	inner := route.OracleFunc[graph.System](func(ctx context.Context, center graph.Position, radius float64) ([]graph.System, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return []graph.System{{Addr: 1}}, nil
	})
	o := Instrument[graph.System]("instrument-test", inner)

	got, err := o.Neighbors(t.Context(), graph.Position{}, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	fail = true
	_, err = o.Neighbors(t.Context(), graph.Position{}, 1)
	require.Error(t, err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}
