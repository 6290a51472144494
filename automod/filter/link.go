package filter

import (
	"fmt"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/config"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/helpers"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/setstore"
)

// LinkFilter flags links to blocked domains, domains outside an allow list, URL shorteners, and messages with too many links.
type LinkFilter struct{}

func (f *LinkFilter) Kind() Kind { return KindLink }

func (f *LinkFilter) Enabled(cfg *config.GuildConfig) bool { return cfg.Links.Enabled }

func (f *LinkFilter) Evaluate(c *Context) (*Finding, error) {
	if !c.isMessage() {
		return nil, nil
	}
	cfg := c.Config.Links

	var domains []string
	for _, raw := range helpers.ExtractTextURLs(c.Message.Content) {
		d := helpers.URLDomain(raw)
		if helpers.LooksLikeDomain(d) {
			domains = append(domains, d)
		}
	}
	if len(domains) == 0 {
		return nil, nil
	}

	var globalBlocked []string
	if c.Sets != nil {
		var err error
		globalBlocked, err = c.Sets.Members(c.Ctx, setstore.SetBlockedDomains)
		if err != nil {
			return nil, fmt.Errorf("loading blocked domains: %w", err)
		}
	}

	for _, d := range domains {
		if p, ok := helpers.MatchDomain(d, cfg.BlockedDomains); ok {
			return &Finding{Confidence: 1, SuggestedAction: cfg.Action, Reason: fmt.Sprintf("link to blocked domain %s", p)}, nil
		}
		if p, ok := helpers.MatchDomain(d, globalBlocked); ok {
			return &Finding{Confidence: 1, SuggestedAction: cfg.Action, Reason: fmt.Sprintf("link to blocked domain %s", p)}, nil
		}
		if len(cfg.AllowedDomains) > 0 {
			if _, ok := helpers.MatchDomain(d, cfg.AllowedDomains); !ok {
				return &Finding{Confidence: 0.9, SuggestedAction: cfg.Action, Reason: fmt.Sprintf("link to %s, which is not on the allow list", d)}, nil
			}
		}
		if cfg.BlockShorteners && c.Sets != nil {
			short, err := c.Sets.InSet(c.Ctx, setstore.SetURLShorteners, d)
			if err != nil {
				return nil, fmt.Errorf("checking url shorteners: %w", err)
			}
			if short {
				return &Finding{Confidence: 0.8, SuggestedAction: cfg.Action, Reason: fmt.Sprintf("shortened link via %s", d)}, nil
			}
		}
	}

	if len(domains) > cfg.MaxLinks {
		return &Finding{
			Confidence:      countConfidence(len(domains), cfg.MaxLinks+1),
			SuggestedAction: cfg.Action,
			Reason:          fmt.Sprintf("%d links in one message (max %d)", len(domains), cfg.MaxLinks),
		}, nil
	}
	return nil, nil
}
