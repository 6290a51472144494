package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/config"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/toxicity"
)

// ToxicityFilter flags messages the external scorer rates above the guild threshold. When the scorer is missing, slow, or failing, messages pass and the evaluation is marked degraded.
type ToxicityFilter struct {
	Scorer toxicity.Scorer
}

func (f *ToxicityFilter) Kind() Kind { return KindToxicity }

func (f *ToxicityFilter) Enabled(cfg *config.GuildConfig) bool { return cfg.Toxicity.Enabled }

func (f *ToxicityFilter) Evaluate(c *Context) (*Finding, error) {
	if !c.isMessage() || strings.TrimSpace(c.Message.Content) == "" {
		return nil, nil
	}
	cfg := c.Config.Toxicity
	if f.Scorer == nil {
		c.MarkDegraded("toxicity")
		toxicityDegradedCount.Inc()
		c.Logger.Debug("no toxicity scorer configured")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(c.Ctx, cfg.Timeout)
	defer cancel()
	score, err := f.Scorer.Score(ctx, c.Message.Content)
	if err != nil {
		c.MarkDegraded("toxicity")
		toxicityDegradedCount.Inc()
		c.Logger.Warn("toxicity scorer unavailable, message passed", "err", err)
		return nil, nil
	}
	score = clamp01(score)
	if score <= cfg.Threshold {
		return nil, nil
	}
	return &Finding{
		Confidence:      score,
		SuggestedAction: cfg.Action,
		Reason:          fmt.Sprintf("toxicity score %.2f above %.2f", score, cfg.Threshold),
	}, nil
}
