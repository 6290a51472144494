package engine

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/action"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/filter"
)

// Decision is the engine's verdict on one event. The platform adapter executes Action.
type Decision struct {
	// false whenever Action is more than None
	Allowed  bool          `json:"allowed"`
	Action   action.Action `json:"action"`
	Severity int           `json:"severity"`
	// reasons of every finding, joined with "; "
	Reason   string           `json:"reason,omitempty"`
	Findings []filter.Finding `json:"findings,omitempty"`
	// for time-bounded actions (timeouts, temporary bans); zero otherwise
	Duration  time.Duration `json:"duration,omitempty"`
	ExpiresAt time.Time     `json:"expires_at,omitempty"`
	// some collaborator (scorer, storage) was unavailable
	Degraded bool              `json:"degraded,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// metadata keys
const (
	MetaFilters        = "filters"
	MetaConfidence     = "confidence."
	MetaViolationCount = "violation_count"
	MetaTier           = "tier"
	MetaEscalatedFrom  = "escalated_from"
	MetaDegraded       = "degraded"
	MetaFilterErrors   = "filter_errors"
	MetaConfig         = "config"
	MetaExempt         = "exempt"
	MetaError          = "error"
	MetaScheduleID     = "schedule_id"
)

func allowDecision() Decision {
	return Decision{
		Allowed:  true,
		Action:   action.None,
		Metadata: map[string]string{},
	}
}

// IsTimeBounded is true when the adapter should register a reversal for this decision.
func (d *Decision) IsTimeBounded() bool {
	return d.Duration > 0 && !d.ExpiresAt.IsZero()
}

func (d *Decision) clone() Decision {
	out := *d
	out.Findings = slices.Clone(d.Findings)
	out.Metadata = maps.Clone(d.Metadata)
	return out
}

func (d *Decision) markDegraded(component string) {
	d.Degraded = true
	d.Metadata[MetaDegraded] = "true"
	d.Metadata[MetaDegraded+"."+component] = "true"
}

// picks the finding with the most severe suggested action; ties go to the first in filter order
func strongest(findings []filter.Finding) filter.Finding {
	best := findings[0]
	for _, f := range findings[1:] {
		if action.Severity(f.SuggestedAction) > action.Severity(best.SuggestedAction) {
			best = f
		}
	}
	return best
}

func describeFindings(d *Decision, findings []filter.Finding) {
	kinds := make([]string, 0, len(findings))
	reasons := make([]string, 0, len(findings))
	for _, f := range findings {
		kinds = append(kinds, string(f.Kind))
		if f.Reason != "" {
			reasons = append(reasons, f.Reason)
		}
		d.Metadata[MetaConfidence+string(f.Kind)] = strconv.FormatFloat(f.Confidence, 'f', 2, 64)
	}
	d.Metadata[MetaFilters] = strings.Join(kinds, ",")
	d.Reason = strings.Join(reasons, "; ")
	d.Findings = findings
}
