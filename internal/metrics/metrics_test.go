package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/surnamesim/internal/engine"
)

func TestObserveYear_AccumulatesCounters(t *testing.T) {
	c := New()

	c.ObserveYear(engine.YearResult{Year: 1, Births: 3, Deaths: 2, Pairings: 4, Conceptions: 5, DeathAges: []int{40, 71}})
	c.ObserveYear(engine.YearResult{Year: 2, Births: 1, Deaths: 1, DeathAges: []int{88}})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.year))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.births))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.deaths))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.pairings))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.conceptions))
	assert.Equal(t, 1, testutil.CollectAndCount(c.deathAge))
}

func TestReport_SetsGauges(t *testing.T) {
	c := New()

	require.NoError(t, c.Report(context.Background(), engine.Snapshot{
		Year:              100,
		Population:        9000,
		MeanAge:           33.5,
		Lineages:          1200,
		LargestLineage:    40,
		PartneredFraction: 0.5,
		NetPerYear:        -2.5,
	}))

	assert.Equal(t, 9000.0, testutil.ToFloat64(c.population))
	assert.Equal(t, 33.5, testutil.ToFloat64(c.meanAge))
	assert.Equal(t, 1200.0, testutil.ToFloat64(c.lineages))
	assert.Equal(t, 40.0, testutil.ToFloat64(c.largestLineage))
	assert.Equal(t, 0.5, testutil.ToFloat64(c.partneredFraction))
	assert.Equal(t, -2.5, testutil.ToFloat64(c.netPerYear))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.extinct))

	require.NoError(t, c.Report(context.Background(), engine.Snapshot{Year: 101, Extinct: true}))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.extinct))
}

func TestHandler_Exposition(t *testing.T) {
	c := New()
	c.ObserveYear(engine.YearResult{Year: 1, Births: 2})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "surnamesim_births_total 2")
	assert.Contains(t, string(body), "surnamesim_year 1")
}

func TestServe_StopsOnCancel(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, c.Serve(ctx, "127.0.0.1:0"))
}
