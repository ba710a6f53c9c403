package obs

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Client-side metrics. Registration is explicit via Init so embedding
// applications that bring their own registry can skip it.
var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_client_requests_total",
			Help: "Total number of portal API requests.",
		},
		[]string{"method", "status"},
	)

	tokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_client_token_refresh_total",
			Help: "Token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	probeFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_client_endpoint_fallbacks_total",
		Help: "Endpoint probes that fell through to an alternate candidate.",
	})

	presenceReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_client_presence_reconnects_total",
		Help: "Presence socket reconnect attempts.",
	})

	presenceFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_client_presence_frames_total",
			Help: "Presence frames applied, by frame type.",
		},
		[]string{"type"},
	)
)

// Init registers the client metrics on the default registry.
func Init() {
	prometheus.MustRegister(
		requestsTotal,
		tokenRefreshTotal,
		probeFallbacksTotal,
		presenceReconnectsTotal,
		presenceFramesTotal,
	)
}

// Handler exposes the default registry for embedding applications.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveRequest(method string, status int) {
	requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func ObserveTokenRefresh(outcome string) {
	tokenRefreshTotal.WithLabelValues(outcome).Inc()
}

func ObserveEndpointFallback() {
	probeFallbacksTotal.Inc()
}

func ObservePresenceReconnect() {
	presenceReconnectsTotal.Inc()
}

func ObservePresenceFrame(frameType string) {
	presenceFramesTotal.WithLabelValues(frameType).Inc()
}
