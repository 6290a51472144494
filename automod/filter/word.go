package filter

import (
	"fmt"
	"strings"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/config"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/event"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/helpers"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/keyword"

	lru "github.com/hashicorp/golang-lru/v2"
)

// WordFilter flags messages containing entries from the guild word list (tokens, phrases, or regular expressions). For join events the display name is checked instead.
//
// Compiled lists are cached by content, so guilds sharing a list share a matcher.
type WordFilter struct {
	matchers *lru.Cache[string, *keyword.Matcher]
}

func NewWordFilter() *WordFilter {
	cache, err := lru.New[string, *keyword.Matcher](1024)
	if err != nil {
		panic(err)
	}
	return &WordFilter{matchers: cache}
}

func (f *WordFilter) Kind() Kind { return KindWord }

func (f *WordFilter) Enabled(cfg *config.GuildConfig) bool {
	return cfg.Words.Enabled && (len(cfg.Words.Words) > 0 || len(cfg.Words.Patterns) > 0)
}

func (f *WordFilter) matcher(c *Context) *keyword.Matcher {
	cfg := c.Config.Words
	fp := helpers.HashOfString(strings.Join(cfg.Words, "\x00") + "\x01" + strings.Join(cfg.Patterns, "\x00"))
	if m, ok := f.matchers.Get(fp); ok {
		return m
	}
	m, errs := keyword.NewMatcher(cfg.Words, cfg.Patterns)
	for _, err := range errs {
		wordPatternErrorCount.Inc()
		c.Logger.Warn("skipping malformed word pattern", "guild", c.Config.GuildID, "err", err)
	}
	f.matchers.Add(fp, m)
	return m
}

func (f *WordFilter) Evaluate(c *Context) (*Finding, error) {
	m := f.matcher(c)
	if m.Empty() {
		return nil, nil
	}
	var match string
	var ok bool
	switch c.Message.Kind {
	case event.KindJoin:
		match, ok = m.MatchIdentifier(c.Message.AuthorName)
	default:
		match, ok = m.Match(c.Message.Content)
	}
	if !ok {
		return nil, nil
	}
	return &Finding{
		Confidence:      1,
		SuggestedAction: c.Config.Words.Action,
		Reason:          fmt.Sprintf("matched word list entry %q", match),
	}, nil
}
