package filter

import (
	"fmt"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/config"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/history"
)

// SpamFilter flags message bursts: a message is flagged when the user already sent MaxMessages or more within the window.
type SpamFilter struct{}

func (f *SpamFilter) Kind() Kind { return KindSpam }

func (f *SpamFilter) Enabled(cfg *config.GuildConfig) bool { return cfg.Spam.Enabled }

func (f *SpamFilter) Evaluate(c *Context) (*Finding, error) {
	// a user's first message always passes
	if !c.isMessage() || len(c.Recent) == 0 {
		return nil, nil
	}
	cfg := c.Config.Spam
	prior := len(history.Within(c.Recent, c.Now, cfg.Window))
	if prior < cfg.MaxMessages {
		return nil, nil
	}
	return &Finding{
		Confidence:      countConfidence(prior+1, cfg.MaxMessages),
		SuggestedAction: cfg.Action,
		Reason:          fmt.Sprintf("sent %d messages within %s", prior+1, cfg.Window),
	}, nil
}
