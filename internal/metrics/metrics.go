package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mcsweep"

// Collector holds the run's counters. A nil *Collector is valid and
// records nothing, so components can take one unconditionally.
type Collector struct {
	reg *prometheus.Registry

	generated       prometheus.Counter
	duplicates      prometheus.Counter
	checks          prometheus.Counter
	reachable       prometheus.Counter
	probes          prometheus.Counter
	probeFailures   prometheus.Counter
	servers         prometheus.Counter
	flushes         prometheus.Counter
	flushErrors     prometheus.Counter
	frontierErrors  prometheus.Counter
	queueDepth      *prometheus.GaugeVec
	state           prometheus.Gauge
	platforms       *prometheus.CounterVec
	probeDurationMs prometheus.Histogram
}

// New registers every metric on a private registry.
func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "candidates_generated_total",
			Help: "Candidate addresses produced by the generator.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "candidates_duplicate_total",
			Help: "Candidates skipped because the address was already tested.",
		}),
		checks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reachability_checks_total",
			Help: "TCP connect checks performed.",
		}),
		reachable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reachable_hosts_total",
			Help: "Hosts that accepted a connection.",
		}),
		probes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "status_probes_total",
			Help: "Status queries attempted.",
		}),
		probeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "status_probe_failures_total",
			Help: "Status queries that did not return a usable response.",
		}),
		servers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "servers_found_total",
			Help: "Servers that answered a status query.",
		}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "store_flushes_total",
			Help: "Result store flushes that wrote new records.",
		}),
		flushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "store_flush_errors_total",
			Help: "Result store flushes that failed.",
		}),
		frontierErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frontier_append_errors_total",
			Help: "Frontier appends that failed.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_depth",
			Help: "Items waiting in a stage queue.",
		}, []string{"stage"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "run_state",
			Help: "Current pipeline state (0=filling ... 4=terminated).",
		}),
		platforms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "servers_by_platform_total",
			Help: "Servers found, by platform tag.",
		}, []string{"platform"}),
		probeDurationMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "status_probe_duration_milliseconds",
			Help:    "Round-trip time of successful status queries.",
			Buckets: []float64{25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
	}

	c.reg.MustRegister(
		c.generated, c.duplicates, c.checks, c.reachable,
		c.probes, c.probeFailures, c.servers,
		c.flushes, c.flushErrors, c.frontierErrors,
		c.queueDepth, c.state, c.platforms, c.probeDurationMs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Generated() {
	if c != nil {
		c.generated.Inc()
	}
}

func (c *Collector) Duplicate() {
	if c != nil {
		c.duplicates.Inc()
	}
}

// Checked records one reachability check and its result.
func (c *Collector) Checked(ok bool) {
	if c == nil {
		return
	}
	c.checks.Inc()
	if ok {
		c.reachable.Inc()
	}
}

// Probed records one status query. platform is ignored on failure.
func (c *Collector) Probed(ok bool, platform string, took time.Duration) {
	if c == nil {
		return
	}
	c.probes.Inc()
	if !ok {
		c.probeFailures.Inc()
		return
	}
	c.servers.Inc()
	c.platforms.WithLabelValues(platform).Inc()
	c.probeDurationMs.Observe(float64(took.Milliseconds()))
}

// Flushed records a store flush. Flushes that added nothing are not counted.
func (c *Collector) Flushed(added int, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.flushErrors.Inc()
		return
	}
	if added > 0 {
		c.flushes.Inc()
	}
}

func (c *Collector) FrontierError() {
	if c != nil {
		c.frontierErrors.Inc()
	}
}

func (c *Collector) QueueDepth(stage string, n int) {
	if c != nil {
		c.queueDepth.WithLabelValues(stage).Set(float64(n))
	}
}

func (c *Collector) State(s int) {
	if c != nil {
		c.state.Set(float64(s))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
