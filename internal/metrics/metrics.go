// Package metrics exposes simulation progress as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/surnamesim/internal/engine"
)

const namespace = "surnamesim"

// Collector owns a registry with the per-year counters and the per-report
// gauges.
type Collector struct {
	reg *prometheus.Registry

	year        prometheus.Gauge
	births      prometheus.Counter
	deaths      prometheus.Counter
	pairings    prometheus.Counter
	conceptions prometheus.Counter
	deathAge    prometheus.Histogram

	population        prometheus.Gauge
	meanAge           prometheus.Gauge
	lineages          prometheus.Gauge
	largestLineage    prometheus.Gauge
	partneredFraction prometheus.Gauge
	netPerYear        prometheus.Gauge
	extinct           prometheus.Gauge
}

// New creates a Collector on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		reg: reg,

		year: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "year",
			Help:      "Years simulated so far",
		}),
		births: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "births_total",
			Help:      "Children born",
		}),
		deaths: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deaths_total",
			Help:      "Agents who died",
		}),
		pairings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairings_total",
			Help:      "Partnerships formed",
		}),
		conceptions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conceptions_total",
			Help:      "Successful conception attempts",
		}),
		deathAge: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "death_age_years",
			Help:      "Age at death",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),

		population: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "population",
			Help:      "Live agents at the last report",
		}),
		meanAge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_age_years",
			Help:      "Mean age of live agents at the last report",
		}),
		lineages: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lineages",
			Help:      "Distinct surname tags alive at the last report",
		}),
		largestLineage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "largest_lineage",
			Help:      "Members of the most common surname at the last report",
		}),
		partneredFraction: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "partnered_fraction",
			Help:      "Share of live agents with a partner at the last report",
		}),
		netPerYear: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "net_growth_per_year",
			Help:      "Births minus deaths per year over the last report window",
		}),
		extinct: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "extinct",
			Help:      "1 once the population has died out",
		}),
	}
}

// ObserveYear records one simulated year. Call it from the simulation's
// year hook.
func (c *Collector) ObserveYear(res engine.YearResult) {
	c.year.Set(float64(res.Year))
	c.births.Add(float64(res.Births))
	c.deaths.Add(float64(res.Deaths))
	c.pairings.Add(float64(res.Pairings))
	c.conceptions.Add(float64(res.Conceptions))
	for _, age := range res.DeathAges {
		c.deathAge.Observe(float64(age))
	}
}

// Report implements engine.Reporter by updating the census gauges.
func (c *Collector) Report(_ context.Context, snap engine.Snapshot) error {
	c.year.Set(float64(snap.Year))
	c.population.Set(float64(snap.Population))
	c.meanAge.Set(snap.MeanAge)
	c.lineages.Set(float64(snap.Lineages))
	c.largestLineage.Set(float64(snap.LargestLineage))
	c.partneredFraction.Set(snap.PartneredFraction)
	c.netPerYear.Set(snap.NetPerYear)
	if snap.Extinct {
		c.extinct.Set(1)
	} else {
		c.extinct.Set(0)
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
