package filter

import (
	"fmt"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/config"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/history"
)

// MentionFilter flags mention spam: total mentions within the window, counting the current message, reaching the threshold. Only messages which themselves mention someone are flagged.
type MentionFilter struct{}

func (f *MentionFilter) Kind() Kind { return KindMention }

func (f *MentionFilter) Enabled(cfg *config.GuildConfig) bool { return cfg.Mentions.Enabled }

func (f *MentionFilter) Evaluate(c *Context) (*Finding, error) {
	if !c.isMessage() {
		return nil, nil
	}
	current := c.Message.Mentions.Count()
	if current == 0 {
		return nil, nil
	}
	cfg := c.Config.Mentions
	total := current
	for _, e := range history.Within(c.Recent, c.Now, cfg.Window) {
		total += e.Mentions
	}
	if total < cfg.Threshold {
		return nil, nil
	}
	return &Finding{
		Confidence:      countConfidence(total, cfg.Threshold),
		SuggestedAction: cfg.Action,
		Reason:          fmt.Sprintf("%d mentions within %s", total, cfg.Window),
	}, nil
}
