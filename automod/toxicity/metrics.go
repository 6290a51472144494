package toxicity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scorerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "automod_toxicity_api_duration_sec",
	Help: "Duration of toxicity scoring API calls",
})

var scorerCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_toxicity_api_count",
	Help: "Number of toxicity scoring API calls, by HTTP status code",
}, []string{"status"})
