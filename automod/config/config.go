package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/action"
)

// ErrInvalidConfig wraps every problem found while normalizing a guild config. Invalid values are replaced with defaults, so these are warnings, not failures.
var ErrInvalidConfig = errors.New("invalid moderation config")

// Upper bound on the look-back of the message-history based filters (spam, duplicate, mention). Short-term history is not retained longer than this.
const MaxContextWindow = 10 * time.Minute

type SpamConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// prior messages within Window at which the next message is flagged (inclusive)
	MaxMessages int           `yaml:"max_messages" json:"max_messages"`
	Window      time.Duration `yaml:"window" json:"window"`
	Action      action.Action `yaml:"action" json:"action"`
}

type DuplicateConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// prior identical messages within Window at which the next one is flagged (inclusive)
	MaxDuplicates int           `yaml:"max_duplicates" json:"max_duplicates"`
	Window        time.Duration `yaml:"window" json:"window"`
	Action        action.Action `yaml:"action" json:"action"`
}

type ToxicityConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// scores strictly above this are flagged
	Threshold float64 `yaml:"threshold" json:"threshold"`
	// bound on a single scorer call; on timeout the message passes
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	Action  action.Action `yaml:"action" json:"action"`
}

type LinkConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// messages with more links than this are flagged (strict)
	MaxLinks       int      `yaml:"max_links" json:"max_links"`
	BlockedDomains []string `yaml:"blocked_domains" json:"blocked_domains,omitempty"`
	// if non-empty, links to any other domain are flagged
	AllowedDomains  []string      `yaml:"allowed_domains" json:"allowed_domains,omitempty"`
	BlockShorteners bool          `yaml:"block_shorteners" json:"block_shorteners"`
	Action          action.Action `yaml:"action" json:"action"`
}

type WordConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Words    []string      `yaml:"words" json:"words,omitempty"`
	Patterns []string      `yaml:"patterns" json:"patterns,omitempty"`
	Action   action.Action `yaml:"action" json:"action"`
}

type CapsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// upper-case ratio strictly above this is flagged
	Threshold float64 `yaml:"threshold" json:"threshold"`
	// messages shorter than this (in counted characters) always pass
	MinLength   int           `yaml:"min_length" json:"min_length"`
	IgnoreEmoji bool          `yaml:"ignore_emoji" json:"ignore_emoji"`
	Action      action.Action `yaml:"action" json:"action"`
}

type MentionConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// total mentions within Window (including the current message) at which the message is flagged (inclusive)
	Threshold int           `yaml:"threshold" json:"threshold"`
	Window    time.Duration `yaml:"window" json:"window"`
	Action    action.Action `yaml:"action" json:"action"`
}

// Tier raises the action for a violation once the user's count within the escalation window reaches Count.
type Tier struct {
	Count  int           `yaml:"count" json:"count"`
	Action action.Action `yaml:"action" json:"action"`
}

type EscalationConfig struct {
	Window time.Duration `yaml:"window" json:"window"`
	// ascending by Count
	Tiers []Tier `yaml:"tiers" json:"tiers"`
	// escalate from the user's previously assigned action when a tier is crossed
	Progressive     bool          `yaml:"progressive" json:"progressive"`
	TimeoutDuration time.Duration `yaml:"timeout_duration" json:"timeout_duration"`
	// zero means bans are permanent
	TempBanDuration time.Duration `yaml:"temp_ban_duration" json:"temp_ban_duration"`
}

// GuildConfig is the moderation policy for one guild. Values are treated as immutable once handed to the engine.
type GuildConfig struct {
	GuildID     string           `yaml:"guild_id" json:"guild_id"`
	Spam        SpamConfig       `yaml:"spam" json:"spam"`
	Duplicates  DuplicateConfig  `yaml:"duplicates" json:"duplicates"`
	Toxicity    ToxicityConfig   `yaml:"toxicity" json:"toxicity"`
	Links       LinkConfig       `yaml:"links" json:"links"`
	Words       WordConfig       `yaml:"words" json:"words"`
	Caps        CapsConfig       `yaml:"caps" json:"caps"`
	Mentions    MentionConfig    `yaml:"mentions" json:"mentions"`
	Escalation  EscalationConfig `yaml:"escalation" json:"escalation"`
	ExemptUsers []string         `yaml:"exempt_users" json:"exempt_users,omitempty"`
	ExemptRoles []string         `yaml:"exempt_roles" json:"exempt_roles,omitempty"`
}

// DefaultGuildConfig is the conservative policy used for guilds without configuration, and when configuration can't be loaded: spam, duplicate, toxicity, and link filters with generous thresholds.
func DefaultGuildConfig() GuildConfig {
	return GuildConfig{
		Spam: SpamConfig{
			Enabled:     true,
			MaxMessages: 6,
			Window:      10 * time.Second,
			Action:      action.DeleteMessage,
		},
		Duplicates: DuplicateConfig{
			Enabled:       true,
			MaxDuplicates: 3,
			Window:        time.Minute,
			Action:        action.DeleteMessage,
		},
		Toxicity: ToxicityConfig{
			Enabled:   true,
			Threshold: 0.85,
			Timeout:   2 * time.Second,
			Action:    action.DeleteAndWarn,
		},
		Links: LinkConfig{
			Enabled:  true,
			MaxLinks: 5,
			Action:   action.DeleteMessage,
		},
		Words: WordConfig{
			Action: action.DeleteMessage,
		},
		Caps: CapsConfig{
			Threshold:   0.7,
			MinLength:   10,
			IgnoreEmoji: true,
			Action:      action.DeleteMessage,
		},
		Mentions: MentionConfig{
			Threshold: 8,
			Window:    30 * time.Second,
			Action:    action.DeleteAndTimeout,
		},
		Escalation: EscalationConfig{
			Window: 24 * time.Hour,
			Tiers: []Tier{
				{Count: 3, Action: action.WarnUser},
				{Count: 5, Action: action.Timeout},
				{Count: 8, Action: action.Kick},
				{Count: 12, Action: action.Ban},
			},
			TimeoutDuration: 10 * time.Minute,
		},
	}
}

// Clone returns a deep copy.
func (c GuildConfig) Clone() GuildConfig {
	out := c
	out.Links.BlockedDomains = slices.Clone(c.Links.BlockedDomains)
	out.Links.AllowedDomains = slices.Clone(c.Links.AllowedDomains)
	out.Words.Words = slices.Clone(c.Words.Words)
	out.Words.Patterns = slices.Clone(c.Words.Patterns)
	out.Escalation.Tiers = slices.Clone(c.Escalation.Tiers)
	out.ExemptUsers = slices.Clone(c.ExemptUsers)
	out.ExemptRoles = slices.Clone(c.ExemptRoles)
	return out
}

// Normalize replaces invalid values with defaults, in place. Each replaced value is reported as an error wrapping ErrInvalidConfig.
func (c *GuildConfig) Normalize() []error {
	def := DefaultGuildConfig()
	var errs []error
	invalid := func(field string, val any) {
		errs = append(errs, fmt.Errorf("%w: %s=%v", ErrInvalidConfig, field, val))
	}
	fixAction := func(field string, a *action.Action, fallback action.Action) {
		if *a < action.None || *a > action.Ban {
			invalid(field, int(*a))
			*a = fallback
		}
	}
	fixWindow := func(field string, w *time.Duration, fallback time.Duration) {
		if *w <= 0 {
			invalid(field, *w)
			*w = fallback
		} else if *w > MaxContextWindow {
			invalid(field, *w)
			*w = MaxContextWindow
		}
	}

	if c.Spam.MaxMessages <= 0 {
		invalid("spam.max_messages", c.Spam.MaxMessages)
		c.Spam.MaxMessages = def.Spam.MaxMessages
	}
	fixWindow("spam.window", &c.Spam.Window, def.Spam.Window)
	fixAction("spam.action", &c.Spam.Action, def.Spam.Action)

	if c.Duplicates.MaxDuplicates <= 0 {
		invalid("duplicates.max_duplicates", c.Duplicates.MaxDuplicates)
		c.Duplicates.MaxDuplicates = def.Duplicates.MaxDuplicates
	}
	fixWindow("duplicates.window", &c.Duplicates.Window, def.Duplicates.Window)
	fixAction("duplicates.action", &c.Duplicates.Action, def.Duplicates.Action)

	if c.Toxicity.Threshold < 0 || c.Toxicity.Threshold > 1 {
		invalid("toxicity.threshold", c.Toxicity.Threshold)
		c.Toxicity.Threshold = def.Toxicity.Threshold
	}
	if c.Toxicity.Timeout <= 0 {
		invalid("toxicity.timeout", c.Toxicity.Timeout)
		c.Toxicity.Timeout = def.Toxicity.Timeout
	}
	fixAction("toxicity.action", &c.Toxicity.Action, def.Toxicity.Action)

	if c.Links.MaxLinks < 0 {
		invalid("links.max_links", c.Links.MaxLinks)
		c.Links.MaxLinks = def.Links.MaxLinks
	}
	fixAction("links.action", &c.Links.Action, def.Links.Action)

	fixAction("words.action", &c.Words.Action, def.Words.Action)

	if c.Caps.Threshold < 0 || c.Caps.Threshold > 1 {
		invalid("caps.threshold", c.Caps.Threshold)
		c.Caps.Threshold = def.Caps.Threshold
	}
	if c.Caps.MinLength < 0 {
		invalid("caps.min_length", c.Caps.MinLength)
		c.Caps.MinLength = def.Caps.MinLength
	}
	fixAction("caps.action", &c.Caps.Action, def.Caps.Action)

	if c.Mentions.Threshold <= 0 {
		invalid("mentions.threshold", c.Mentions.Threshold)
		c.Mentions.Threshold = def.Mentions.Threshold
	}
	fixWindow("mentions.window", &c.Mentions.Window, def.Mentions.Window)
	fixAction("mentions.action", &c.Mentions.Action, def.Mentions.Action)

	if c.Escalation.Window <= 0 {
		invalid("escalation.window", c.Escalation.Window)
		c.Escalation.Window = def.Escalation.Window
	}
	if c.Escalation.TimeoutDuration <= 0 {
		invalid("escalation.timeout_duration", c.Escalation.TimeoutDuration)
		c.Escalation.TimeoutDuration = def.Escalation.TimeoutDuration
	}
	if c.Escalation.TempBanDuration < 0 {
		invalid("escalation.temp_ban_duration", c.Escalation.TempBanDuration)
		c.Escalation.TempBanDuration = 0
	}
	errs = append(errs, c.normalizeTiers()...)
	return errs
}

func (c *GuildConfig) normalizeTiers() []error {
	var errs []error
	tiers := make([]Tier, 0, len(c.Escalation.Tiers))
	for _, t := range c.Escalation.Tiers {
		if t.Count <= 0 || t.Action < action.None || t.Action > action.Ban {
			errs = append(errs, fmt.Errorf("%w: escalation tier count=%d action=%d", ErrInvalidConfig, t.Count, int(t.Action)))
			continue
		}
		tiers = append(tiers, t)
	}
	if !sort.SliceIsSorted(tiers, func(i, j int) bool { return tiers[i].Count < tiers[j].Count }) {
		errs = append(errs, fmt.Errorf("%w: escalation tiers not in ascending order", ErrInvalidConfig))
		sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].Count < tiers[j].Count })
	}
	// for repeated counts, keep the harsher action
	out := tiers[:0]
	for _, t := range tiers {
		if n := len(out); n > 0 && out[n-1].Count == t.Count {
			out[n-1].Action = action.Max(out[n-1].Action, t.Action)
			continue
		}
		out = append(out, t)
	}
	c.Escalation.Tiers = out
	return errs
}

// TierFor returns the highest tier reached by count, if any.
func (e EscalationConfig) TierFor(count int) (Tier, bool) {
	var out Tier
	found := false
	for _, t := range e.Tiers {
		if count >= t.Count {
			out = t
			found = true
		}
	}
	return out, found
}

// IsExempt is true if the user, or any of their roles, is excluded from automated moderation.
func (c *GuildConfig) IsExempt(userID string, roles []string) bool {
	if slices.Contains(c.ExemptUsers, userID) {
		return true
	}
	for _, r := range roles {
		if slices.Contains(c.ExemptRoles, r) {
			return true
		}
	}
	return false
}
