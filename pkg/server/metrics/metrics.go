// Package metrics defines the prometheus collectors for the mentor server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector so handlers take one dependency.
type Metrics struct {
	registry *prometheus.Registry

	// VoiceConnections tracks concurrently open relay sessions.
	VoiceConnections prometheus.Gauge

	// VoiceAudioBytes counts relayed PCM bytes by direction (up, down).
	VoiceAudioBytes *prometheus.CounterVec

	// VoiceCharacters counts vendor-billed characters.
	VoiceCharacters prometheus.Counter

	// ContextSyncs counts sync requests by result (created, updated).
	ContextSyncs *prometheus.CounterVec

	// ChatRequests counts chat requests by outcome (ok, rate_limited,
	// invalid, error).
	ChatRequests *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		VoiceConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mentor_voice_active_connections",
			Help: "Currently open voice relay sessions.",
		}),
		VoiceAudioBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mentor_voice_audio_bytes_total",
			Help: "Relayed PCM bytes by direction.",
		}, []string{"direction"}),
		VoiceCharacters: factory.NewCounter(prometheus.CounterOpts{
			Name: "mentor_voice_characters_total",
			Help: "Characters billed by the voice vendor.",
		}),
		ContextSyncs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mentor_context_syncs_total",
			Help: "Context sync requests by result.",
		}, []string{"result"}),
		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mentor_chat_requests_total",
			Help: "Chat requests by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
