package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus exposes live benchmark measurements as Prometheus metrics.
type Prometheus struct {
	registry  *prometheus.Registry
	duration  *prometheus.HistogramVec
	failures  *prometheus.CounterVec
	connected prometheus.Gauge
	finished  *prometheus.CounterVec
}

// NewPrometheus registers the benchmark metrics on a private registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kvbench",
			Name:      "op_duration_seconds",
			Help:      "Latency of successful key-value operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		}, []string{"op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvbench",
			Name:      "op_failures_total",
			Help:      "Failed key-value operations.",
		}, []string{"op"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kvbench",
			Name:      "connected_workers",
			Help:      "Workers that established a connection in this run.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvbench",
			Name:      "workers_finished_total",
			Help:      "Workers that published a result, by outcome.",
		}, []string{"outcome"}),
	}
	p.registry.MustRegister(p.duration, p.failures, p.connected, p.finished)
	return p
}

// Registry returns the registry holding the benchmark metrics.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) RecordOp(op Op, latency time.Duration, err error) {
	if err != nil {
		p.failures.WithLabelValues(string(op)).Inc()
		return
	}
	p.duration.WithLabelValues(string(op)).Observe(latency.Seconds())
}

func (p *Prometheus) WorkerConnected(int) {
	p.connected.Inc()
}

func (p *Prometheus) WorkerFinished(_ int, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	p.finished.WithLabelValues(outcome).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func (p *Prometheus) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = ln.Close()
		}
	}()
	return nil
}
