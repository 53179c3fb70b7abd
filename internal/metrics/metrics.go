// Package metrics exposes the bot's cycle, signal and order counters to
// Prometheus. A nil *Recorder is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder struct {
	reg *prometheus.Registry

	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	verdicts       *prometheus.CounterVec
	noData         *prometheus.CounterVec
	orders         *prometheus.CounterVec
	openPositions  prometheus.Gauge
	notifyFailures prometheus.Counter
}

// New registers all metrics on a fresh registry so several recorders can
// coexist in one process.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mtfbot_cycles_total",
				Help: "Evaluation cycles by outcome",
			},
			[]string{"result"},
		),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mtfbot_cycle_duration_seconds",
			Help:    "Wall time of one evaluation cycle",
			Buckets: prometheus.DefBuckets,
		}),
		verdicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mtfbot_verdicts_total",
				Help: "Signal verdicts per horizon and direction",
			},
			[]string{"horizon", "direction", "satisfied"},
		),
		noData: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mtfbot_no_data_total",
				Help: "Horizons that produced no indicator row",
			},
			[]string{"horizon"},
		),
		orders: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mtfbot_orders_total",
				Help: "Order submissions by kind and result",
			},
			[]string{"kind", "result"},
		),
		openPositions: f.NewGauge(prometheus.GaugeOpts{
			Name: "mtfbot_open_positions",
			Help: "Open positions reported by the gateway at the last cycle",
		}),
		notifyFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "mtfbot_notify_failures_total",
			Help: "Alerts that could not be delivered",
		}),
	}
}

func (r *Recorder) ObserveCycle(d time.Duration, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.cycles.WithLabelValues(result).Inc()
	r.cycleDuration.Observe(d.Seconds())
}

func (r *Recorder) RecordVerdict(horizon, direction string, satisfied bool) {
	if r == nil {
		return
	}
	s := "false"
	if satisfied {
		s = "true"
	}
	r.verdicts.WithLabelValues(horizon, direction, s).Inc()
}

func (r *Recorder) RecordNoData(horizon string) {
	if r == nil {
		return
	}
	r.noData.WithLabelValues(horizon).Inc()
}

// RecordOrder counts an order submission. kind is "entry" or "exit".
func (r *Recorder) RecordOrder(kind string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	r.orders.WithLabelValues(kind, result).Inc()
}

func (r *Recorder) SetOpenPositions(n int) {
	if r == nil {
		return
	}
	r.openPositions.Set(float64(n))
}

func (r *Recorder) RecordNotifyFailure() {
	if r == nil {
		return
	}
	r.notifyFailures.Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
