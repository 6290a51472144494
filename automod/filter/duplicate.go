package filter

import (
	"fmt"
	"strings"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/config"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/helpers"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/history"
)

// DuplicateFilter flags repeated identical content (ignoring case and whitespace) within the window.
type DuplicateFilter struct{}

func (f *DuplicateFilter) Kind() Kind { return KindDuplicate }

func (f *DuplicateFilter) Enabled(cfg *config.GuildConfig) bool { return cfg.Duplicates.Enabled }

func (f *DuplicateFilter) Evaluate(c *Context) (*Finding, error) {
	if !c.isMessage() || strings.TrimSpace(c.Message.Content) == "" {
		return nil, nil
	}
	cfg := c.Config.Duplicates
	hash := helpers.ContentHash(c.Message.Content)
	dupes := 0
	for _, e := range history.Within(c.Recent, c.Now, cfg.Window) {
		if e.Hash == hash {
			dupes++
		}
	}
	if dupes < cfg.MaxDuplicates {
		return nil, nil
	}
	return &Finding{
		Confidence:      countConfidence(dupes+1, cfg.MaxDuplicates),
		SuggestedAction: cfg.Action,
		Reason:          fmt.Sprintf("repeated the same message %d times within %s", dupes+1, cfg.Window),
	}, nil
}
