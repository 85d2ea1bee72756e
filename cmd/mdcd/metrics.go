package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

type bridgeMetrics struct {
	Commands *prometheus.CounterVec   // labels: op, result
	Latency  *prometheus.HistogramVec // labels: op
	Throttle prometheus.Counter
}

func newBridgeMetrics(reg *prometheus.Registry) *bridgeMetrics {
	m := &bridgeMetrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mdc_commands_total",
			Help: "MDC commands sent, by operation and result.",
		}, []string{"op", "result"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mdc_command_duration_seconds",
			Help:    "Time from sending a command to its acknowledgement.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"op"}),
		Throttle: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mdc_commands_throttled_total",
			Help: "Requests dropped while waiting for the command rate limiter.",
		}),
	}
	reg.MustRegister(m.Commands, m.Latency, m.Throttle)
	return m
}
