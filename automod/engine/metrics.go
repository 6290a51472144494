package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("automod")

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "automod_event_duration_sec",
	Help: "Total duration of automod event processing",
}, []string{"type"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_event_processed",
	Help: "Number of events processed",
}, []string{"type"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_event_errors",
	Help: "Number of events which failed processing",
}, []string{"type"})

var decisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_decisions",
	Help: "Number of blocking decisions, by action",
}, []string{"action"})

var escalationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_escalations",
	Help: "Number of decisions raised above the filter suggestion by escalation tiers",
}, []string{"action"})

var degradedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_degraded_decisions",
	Help: "Number of decisions made with a collaborator unavailable",
}, []string{"component"})

var configFallbackCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_config_fallbacks",
	Help: "Number of events evaluated with the default config because guild config could not be loaded",
})

var notifySkippedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_notifications_rate_limited",
	Help: "Number of notifications dropped by the rate limit",
})

var notifyDroppedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_notifications_dropped",
	Help: "Number of notifications dropped because too many were in flight",
})
