package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	connectedDevices = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "omcli_connected_devices",
		Help: "The number of device sockets currently open",
	})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omcli_commands_total",
		Help: "Commands dispatched, by outcome",
	}, []string{"outcome"}) // "ok", "error", "timeout", "push"

	pushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omcli_pushes_total",
		Help: "APNs pushes attempted, by result",
	}, []string{"result"}) // "ok", "error"

	eventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "omcli_events_published_total",
		Help: "Lifecycle events published on the client event bus",
	})
)

// MetricsHandler returns the HTTP handler for Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
