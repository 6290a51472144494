package cachestore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lookupCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_cache_lookups",
	Help: "Number of cache reads, by cache name and result (hit, miss, corrupt, error)",
}, []string{"name", "result"})
