// Package metrics instruments orchestration, polling, cleanup and provider
// API traffic with Prometheus collectors.
//
// A Recorder owns its registry so that library users can expose it however
// they like; the CLI writes it to a node_exporter textfile. A nil *Recorder
// is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nodekit"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultTimeout = "timeout"
)

// Recorder holds the nodekit collectors.
type Recorder struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	nodesTotal        *prometheus.CounterVec
	pollsTotal        *prometheus.CounterVec
	pollDuration      *prometheus.HistogramVec
	cleanupsTotal     *prometheus.CounterVec
	apiCallsTotal     *prometheus.CounterVec
	apiLatency        *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "compute",
				Name:      "operations_total",
				Help:      "Total number of compute operations by operation and result",
			},
			[]string{"provider", "operation", "result"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "compute",
				Name:      "operation_duration_seconds",
				Help:      "Duration of compute operations in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7min
			},
			[]string{"provider", "operation"},
		),
		nodesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "compute",
				Name:      "nodes_created_total",
				Help:      "Total number of nodes requested in batches by group and result",
			},
			[]string{"provider", "group", "result"},
		),
		pollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "poll",
				Name:      "waits_total",
				Help:      "Total number of status waits by target and outcome",
			},
			[]string{"target", "result"},
		),
		pollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "poll",
				Name:      "wait_duration_seconds",
				Help:      "Duration of status waits in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"target"},
		),
		cleanupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cleanup",
				Name:      "resources_total",
				Help:      "Total number of secondary resource cleanups by kind and result",
			},
			[]string{"kind", "result"},
		),
		apiCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "calls_total",
				Help:      "Total number of provider API calls by method and status code",
			},
			[]string{"provider", "method", "code"},
		),
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "latency_seconds",
				Help:      "Latency of provider API calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
			},
			[]string{"provider", "method"},
		),
	}
	r.registry.MustRegister(
		r.operationsTotal,
		r.operationDuration,
		r.nodesTotal,
		r.pollsTotal,
		r.pollDuration,
		r.cleanupsTotal,
		r.apiCallsTotal,
		r.apiLatency,
	)
	return r
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveOperation records one ComputeService call.
func (r *Recorder) ObserveOperation(providerName, operation string, err error, d time.Duration) {
	if r == nil {
		return
	}
	r.operationsTotal.WithLabelValues(providerName, operation, resultOf(err)).Inc()
	r.operationDuration.WithLabelValues(providerName, operation).Observe(d.Seconds())
}

// RecordNodes records the outcome of a batch.
func (r *Recorder) RecordNodes(providerName, group string, good, bad int) {
	if r == nil {
		return
	}
	r.nodesTotal.WithLabelValues(providerName, group, ResultSuccess).Add(float64(good))
	r.nodesTotal.WithLabelValues(providerName, group, ResultFailure).Add(float64(bad))
}

// ObservePoll records one status wait.
func (r *Recorder) ObservePoll(target, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.pollsTotal.WithLabelValues(target, result).Inc()
	r.pollDuration.WithLabelValues(target).Observe(d.Seconds())
}

// RecordCleanup records one secondary resource cleanup.
func (r *Recorder) RecordCleanup(kind string, err error) {
	if r == nil {
		return
	}
	r.cleanupsTotal.WithLabelValues(kind, resultOf(err)).Inc()
}

// ObserveAPICall records one provider HTTP request. code is 0 when the
// request failed before a response arrived.
func (r *Recorder) ObserveAPICall(providerName, method string, code int, d time.Duration) {
	if r == nil {
		return
	}
	r.apiCallsTotal.WithLabelValues(providerName, method, fmt.Sprint(code)).Inc()
	r.apiLatency.WithLabelValues(providerName, method).Observe(d.Seconds())
}

// WriteTextfile writes all metrics to path in the Prometheus text format,
// atomically, for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func resultOf(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
