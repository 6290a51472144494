package filter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/toxicity"
)

// FilterSet runs filters in declared order. Declared order breaks ties between equally severe findings.
type FilterSet struct {
	Filters []Filter
}

// DefaultFilterSet returns every filter in canonical order. scorer may be nil, which leaves the toxicity filter permanently degraded.
func DefaultFilterSet(scorer toxicity.Scorer) FilterSet {
	return FilterSet{
		Filters: []Filter{
			&SpamFilter{},
			&DuplicateFilter{},
			&ToxicityFilter{Scorer: scorer},
			&LinkFilter{},
			NewWordFilter(),
			&CapsFilter{},
			&MentionFilter{},
		},
	}
}

// Evaluate runs every enabled filter and returns all findings, in filter order. A filter which errors or panics is skipped; its error is logged and returned.
func (fs *FilterSet) Evaluate(c *Context) ([]Finding, []error) {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Ctx == nil {
		c.Ctx = context.Background()
	}
	var findings []Finding
	var errs []error
	for _, f := range fs.Filters {
		if !f.Enabled(c.Config) {
			continue
		}
		start := time.Now()
		finding, err := runFilter(f, c)
		filterDuration.WithLabelValues(string(f.Kind())).Observe(time.Since(start).Seconds())
		if err != nil {
			filterErrorCount.WithLabelValues(string(f.Kind())).Inc()
			c.Logger.Error("moderation filter failed", "filter", f.Kind(), "err", err)
			errs = append(errs, err)
			continue
		}
		if finding != nil {
			filterFindingCount.WithLabelValues(string(f.Kind())).Inc()
			findings = append(findings, *finding)
		}
	}
	return findings, errs
}

func runFilter(f Filter, c *Context) (finding *Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			finding = nil
			err = &Error{Kind: f.Kind(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	finding, err = f.Evaluate(c)
	if err != nil {
		return nil, &Error{Kind: f.Kind(), Err: err}
	}
	if finding != nil {
		finding.Kind = f.Kind()
		finding.Confidence = clamp01(finding.Confidence)
	}
	return finding, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
