// Package metrics provides Prometheus metrics for the terminal server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminality_commands_total",
			Help: "Terminal commands dispatched",
		},
		[]string{"command", "result"},
	)

	traceEffectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminality_trace_effects_total",
			Help: "Threshold effects fired by the trace engine",
		},
		[]string{"band", "effect"},
	)

	questTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminality_quest_transitions_total",
			Help: "Quest state transitions",
		},
		[]string{"kind"},
	)

	mailDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "terminality_mail_delivered_total",
			Help: "Quest mail delivered to player inboxes",
		},
	)

	savesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminality_state_saves_total",
			Help: "Desktop state saves by backend and result",
		},
		[]string{"backend", "result"},
	)

	saveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "terminality_state_save_duration_seconds",
			Help:    "Desktop state save duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	reloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminality_content_reloads_total",
			Help: "Content catalog reloads",
		},
		[]string{"result"},
	)

	resolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "terminality_resolve_duration_seconds",
			Help:    "Time to resolve systems for a session context",
			Buckets: prometheus.DefBuckets,
		},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "terminality_active_sessions",
			Help: "Connected terminal sessions",
		},
	)
)

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// RecordCommand counts a dispatched command.
func RecordCommand(command string, known bool) {
	if !known {
		command = "unknown"
	}
	commandsTotal.WithLabelValues(command, result(known)).Inc()
}

// RecordTraceEffect counts a fired threshold effect.
func RecordTraceEffect(band, effect string) {
	traceEffectsTotal.WithLabelValues(band, effect).Inc()
}

// RecordQuestTransition counts a quest state change.
func RecordQuestTransition(kind string) {
	questTransitionsTotal.WithLabelValues(kind).Inc()
}

// RecordMailDelivered counts one delivered message.
func RecordMailDelivered() {
	mailDeliveredTotal.Inc()
}

// RecordSave records a desktop state save attempt.
func RecordSave(backend string, duration time.Duration, ok bool) {
	savesTotal.WithLabelValues(backend, result(ok)).Inc()
	saveDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordReload records a content reload attempt.
func RecordReload(ok bool) {
	reloadsTotal.WithLabelValues(result(ok)).Inc()
}

// RecordResolve records the time spent resolving systems.
func RecordResolve(duration time.Duration) {
	resolveDuration.Observe(duration.Seconds())
}

// SessionOpened increments the connected session gauge.
func SessionOpened() {
	activeSessions.Inc()
}

// SessionClosed decrements the connected session gauge.
func SessionClosed() {
	activeSessions.Dec()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
