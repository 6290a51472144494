package filter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var filterFindingCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_filter_findings",
	Help: "Number of events flagged, by filter",
}, []string{"filter"})

var filterErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_filter_errors",
	Help: "Number of filter evaluations which failed, by filter",
}, []string{"filter"})

var filterDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "automod_filter_duration_sec",
	Help: "Duration of individual filter evaluations",
}, []string{"filter"})

var toxicityDegradedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_toxicity_degraded",
	Help: "Number of messages which passed the toxicity filter because the scorer was unavailable",
})

var wordPatternErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_word_pattern_errors",
	Help: "Number of malformed word list patterns skipped",
})
