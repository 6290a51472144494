package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scheduleCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_scheduled_actions",
	Help: "Number of time-bounded actions scheduled for reversal, by action",
}, []string{"action"})

var scheduleDedupeCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_scheduled_action_dedupes",
	Help: "Number of schedule requests merged into an existing pending entry",
})

var firedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_scheduled_actions_fired",
	Help: "Number of scheduled actions which expired and were reversed, by action",
}, []string{"action"})

var duplicateFireCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_scheduled_action_duplicate_fires",
	Help: "Number of due entries skipped because they had already fired",
})

var storeErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_scheduler_store_errors",
	Help: "Number of failures persisting the fired flag",
})

var reversalErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_scheduler_reversal_errors",
	Help: "Number of reversal callbacks which returned an error",
})

var pendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "automod_scheduled_actions_pending",
	Help: "Number of scheduled actions awaiting expiry",
})
