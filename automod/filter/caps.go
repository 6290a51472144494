package filter

import (
	"fmt"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/config"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/helpers"
)

type CapsFilter struct{}

func (f *CapsFilter) Kind() Kind { return KindCaps }

func (f *CapsFilter) Enabled(cfg *config.GuildConfig) bool { return cfg.Caps.Enabled }

func (f *CapsFilter) Evaluate(c *Context) (*Finding, error) {
	if !c.isMessage() {
		return nil, nil
	}
	cfg := c.Config.Caps
	ratio, length := helpers.CapsRatio(c.Message.Content, cfg.IgnoreEmoji)
	if length == 0 || length < cfg.MinLength || ratio <= cfg.Threshold {
		return nil, nil
	}
	return &Finding{
		Confidence:      ratio,
		SuggestedAction: cfg.Action,
		Reason:          fmt.Sprintf("%.0f%% capital letters", ratio*100),
	}, nil
}
