package filter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/action"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/config"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/event"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/helpers"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/history"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/setstore"
)

type Kind string

const (
	KindSpam      Kind = "spam"
	KindDuplicate Kind = "duplicate"
	KindToxicity  Kind = "toxicity"
	KindLink      Kind = "link"
	KindWord      Kind = "word"
	KindCaps      Kind = "caps"
	KindMention   Kind = "mention"
)

// Finding is the result of one filter flagging an event.
type Finding struct {
	Kind            Kind          `json:"kind"`
	Confidence      float64       `json:"confidence"`
	SuggestedAction action.Action `json:"suggested_action"`
	Reason          string        `json:"reason"`
}

// Context is everything a filter may look at for one event. Filters must not retain it.
type Context struct {
	Ctx     context.Context
	Logger  *slog.Logger
	Message *event.Message
	// user's prior messages in this guild, oldest first, not including Message
	Recent []history.Entry
	Config *config.GuildConfig
	// global sets (shorteners, blocked domains); may be nil
	Sets setstore.SetStore
	Now  time.Time

	degraded []string
}

// MarkDegraded notes that a collaborator (eg, the toxicity scorer) was unavailable, so the event got a less thorough evaluation.
func (c *Context) MarkDegraded(component string) {
	if !slices.Contains(c.degraded, component) {
		c.degraded = append(c.degraded, component)
	}
}

func (c *Context) Degraded() []string {
	return c.degraded
}

func (c *Context) isMessage() bool {
	return c.Message.Kind == event.KindMessage || c.Message.Kind == ""
}

// Filter is one independent check over an event.
type Filter interface {
	Kind() Kind
	// whether the guild has this filter turned on
	Enabled(cfg *config.GuildConfig) bool
	// returns nil when the event passes
	Evaluate(c *Context) (*Finding, error)
}

// Error is a failure inside a single filter. It never aborts evaluation of the other filters.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("filter %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// EntryFor builds the history entry recorded for an event.
func EntryFor(msg *event.Message, now time.Time) history.Entry {
	e := history.Entry{
		At:       now,
		Mentions: msg.Mentions.Count(),
	}
	if msg.Content != "" {
		e.Hash = helpers.ContentHash(msg.Content)
	}
	return e
}

// confidence for count thresholds: 0.5 at the threshold, rising to 1 at double
func countConfidence(count, threshold int) float64 {
	if threshold <= 0 {
		return 1
	}
	return math.Min(1, 0.5*float64(count)/float64(threshold))
}
