package filter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/action"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/config"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/toxicity"

	"github.com/stretchr/testify/assert"
)

type brokenFilter struct {
	panics bool
}

func (f *brokenFilter) Kind() Kind                           { return Kind("broken") }
func (f *brokenFilter) Enabled(cfg *config.GuildConfig) bool { return true }
func (f *brokenFilter) Evaluate(c *Context) (*Finding, error) {
	if f.panics {
		panic("boom")
	}
	return nil, errors.New("backend down")
}

func TestFilterSetIsolatesFailures(t *testing.T) {
	assert := assert.New(t)

	cfg := blankConfig()
	cfg.Spam = config.SpamConfig{Enabled: true, MaxMessages: 2, Window: time.Minute, Action: action.DeleteMessage}
	cfg.Toxicity = config.ToxicityConfig{Enabled: true, Threshold: 0.5, Timeout: time.Second, Action: action.DeleteAndWarn}
	cfg.Links = config.LinkConfig{Enabled: true, MaxLinks: 5, BlockedDomains: []string{"evil.example"}, Action: action.Kick}
	cfg.Words = config.WordConfig{Enabled: true, Patterns: []string{`(broken`}, Action: action.DeleteMessage}

	scorer := toxicity.ScorerFunc(func(ctx context.Context, text string) (float64, error) {
		return 0.99, nil
	})
	fs := DefaultFilterSet(scorer)
	fs.Filters = append([]Filter{&brokenFilter{}, &brokenFilter{panics: true}}, fs.Filters...)

	c := testContext(&cfg, "you idiot, go to https://evil.example/now", priorMessages(3, "x"))
	findings, errs := fs.Evaluate(c)

	assert.Len(errs, 2)
	var ferr *Error
	assert.True(errors.As(errs[0], &ferr))
	assert.Equal(Kind("broken"), ferr.Kind)
	assert.Contains(errs[1].Error(), "panic")

	kinds := []Kind{}
	for _, f := range findings {
		kinds = append(kinds, f.Kind)
	}
	assert.Equal([]Kind{KindSpam, KindToxicity, KindLink}, kinds)
}

func TestFilterSetSkipsDisabled(t *testing.T) {
	assert := assert.New(t)

	cfg := blankConfig()
	fs := DefaultFilterSet(nil)
	c := testContext(&cfg, "HELLO HELLO HELLO HELLO https://bit.ly/x", priorMessages(20, "HELLO HELLO HELLO HELLO https://bit.ly/x"))
	findings, errs := fs.Evaluate(c)
	assert.Empty(findings)
	assert.Empty(errs)
	assert.Empty(c.Degraded())
}

func TestFilterSetJoinEvent(t *testing.T) {
	assert := assert.New(t)

	cfg := config.DefaultGuildConfig()
	cfg.Words = config.WordConfig{Enabled: true, Words: []string{"scam"}, Action: action.Kick}
	fs := DefaultFilterSet(nil)

	c := testContext(&cfg, "", priorMessages(20, ""))
	c.Message.Kind = "join"
	c.Message.AuthorName = "scam_bot"
	findings, errs := fs.Evaluate(c)
	assert.Empty(errs)
	if assert.Len(findings, 1) {
		assert.Equal(KindWord, findings[0].Kind)
		assert.Equal(action.Kick, findings[0].SuggestedAction)
	}
}
