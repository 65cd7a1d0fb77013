package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/kmathy/carlink/core/metrics"
)

// PromSink records refresh and operation outcomes as Prometheus metrics.
type PromSink struct {
	refreshes   *prometheus.CounterVec
	refreshTime *prometheus.HistogramVec
	operations  *prometheus.CounterVec
	opTime      *prometheus.HistogramVec
}

// NewPromSink registers the collectors on the provided registerer. If reg is
// nil, the default registerer is used. Already registered collectors are
// reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carlink_refreshes_total",
		Help: "Total number of finished data retrievals",
	}, []string{"vin", "domain", "success"})
	refreshTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carlink_refresh_duration_seconds",
		Help:    "Duration of data retrievals",
		Buckets: prometheus.DefBuckets,
	}, []string{"domain", "success"})
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carlink_operations_total",
		Help: "Total number of resolved operations",
	}, []string{"vin", "status"})
	opTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carlink_operation_duration_seconds",
		Help:    "Time between command dispatch and bus-reported resolution",
		Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"status"})

	collectors := []prometheus.Collector{refreshes, refreshTime, operations, opTime}
	for i, col := range collectors {
		if err := reg.Register(col); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
			collectors[i] = are.ExistingCollector
		}
	}
	return &PromSink{
		refreshes:   collectors[0].(*prometheus.CounterVec),
		refreshTime: collectors[1].(*prometheus.HistogramVec),
		operations:  collectors[2].(*prometheus.CounterVec),
		opTime:      collectors[3].(*prometheus.HistogramVec),
	}, nil
}

// RecordRefresh increments the refresh counter and observes its duration.
func (s *PromSink) RecordRefresh(r coremetrics.RefreshRecord) error {
	success := strconv.FormatBool(r.Success)
	s.refreshes.WithLabelValues(r.VIN, string(r.Domain), success).Inc()
	s.refreshTime.WithLabelValues(string(r.Domain), success).Observe(r.Elapsed.Seconds())
	return nil
}

// RecordOperation increments the operation counter and observes its duration.
func (s *PromSink) RecordOperation(r coremetrics.OperationRecord) error {
	s.operations.WithLabelValues(r.VIN, r.Status).Inc()
	s.opTime.WithLabelValues(r.Status).Observe(r.Elapsed.Seconds())
	return nil
}

// StartPromServer serves the /metrics endpoint until the context is
// cancelled.
func StartPromServer(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
