package engine

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/action"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/config"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/countstore"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/event"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/filter"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/history"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/setstore"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/store"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/toxicity"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/tracker"
)

// EngineTestFixture returns an engine backed entirely by memory, with every filter wired in and a scorer which flags messages containing "toxic". Intentionally exported, for use in other packages.
func EngineTestFixture() *Engine {
	scorer := toxicity.ScorerFunc(func(ctx context.Context, text string) (float64, error) {
		if strings.Contains(strings.ToLower(text), "toxic") {
			return 0.99, nil
		}
		return 0.01, nil
	})
	sets := setstore.NewDefaultSetStore()
	sets.Add(setstore.SetBlockedDomains, "malware.example.com")
	return &Engine{
		Logger:   slog.Default(),
		Filters:  filter.DefaultFilterSet(scorer),
		Tracker:  tracker.NewTracker(store.NewMemStore(), slog.Default()),
		History:  history.NewStore(1000, 100, config.MaxContextWindow),
		Sets:     sets,
		Counters: countstore.NewMemCountStore(),
	}
}

// FixtureConfig is a policy with every filter enabled, used by engine tests.
func FixtureConfig() config.GuildConfig {
	cfg := config.DefaultGuildConfig()
	cfg.GuildID = "guild1"
	cfg.Words.Enabled = true
	cfg.Words.Words = []string{"scam", "free nitro"}
	cfg.Caps.Enabled = true
	cfg.Mentions.Enabled = true
	cfg.Escalation.Tiers = []config.Tier{
		{Count: 3, Action: action.WarnUser},
		{Count: 5, Action: action.Kick},
		{Count: 10, Action: action.Ban},
	}
	return cfg
}

// MessageSeq builds message events from one author with increasing timestamps.
type MessageSeq struct {
	GuildID  string
	AuthorID string
	Now      time.Time
	Step     time.Duration

	mu sync.Mutex
	n  int
}

func (s *MessageSeq) Next(content string) *event.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	ts := s.Now
	s.Now = s.Now.Add(s.Step)
	return &event.Message{
		ID:        "msg" + strconv.Itoa(s.n),
		Kind:      event.KindMessage,
		AuthorID:  s.AuthorID,
		GuildID:   s.GuildID,
		ChannelID: "chan1",
		Content:   content,
		Timestamp: ts,
	}
}
