package server

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rfratto/fdserve/internal/fine"
)

// NewMetricsMiddleware returns a middleware which records request counts and
// latencies into reg.
func NewMetricsMiddleware(reg prometheus.Registerer) (Middleware, error) {
	mm := &metricsMiddleware{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fdserve_requests_total",
			Help: "Total number of requests handled, partitioned by op and result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fdserve_request_duration_seconds",
			Help:    "Time spent handling requests.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"op"}),
	}

	for _, c := range []prometheus.Collector{mm.requests, mm.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return mm, nil
}

type metricsMiddleware struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func (mm *metricsMiddleware) HandleRequest(ctx context.Context, hdr *fine.RequestHeader, req fine.Request, invoker Invoker) (fine.Response, error) {
	start := time.Now()
	resp, err := invoker(ctx, hdr, req)

	op := hdr.Op.String()
	mm.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	mm.requests.WithLabelValues(op, resultLabel(err)).Inc()
	return resp, err
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	switch fine.ErrorFor(err) {
	case fine.ErrorNotExist:
		return "not_found"
	case fine.ErrorUnimplemented:
		return "unimplemented"
	}
	return "error"
}
