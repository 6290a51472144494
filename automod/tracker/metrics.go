package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var violationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_violations_recorded",
	Help: "Number of violations recorded, by filter kind",
}, []string{"kind"})

var storageErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_tracker_storage_errors",
	Help: "Number of violation storage operations which fell back to memory",
}, []string{"op"})

var unsavedDropCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_tracker_unsaved_dropped",
	Help: "Number of users whose unsaved violation state was evicted before storage recovered",
})

var unsavedUsers = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "automod_tracker_unsaved_users",
	Help: "Number of users with violation writes waiting for storage to recover",
})
