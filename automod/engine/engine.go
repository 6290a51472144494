package engine

import (
	"context"
	"fmt"
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
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/tracker"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// counter names
const (
	CounterDecisions = "automod-decision"
	CounterOffenders = "automod-offenders"
)

// runtime for evaluating events against guild policy and choosing moderation actions.
//
// Tracker is required. Every other collaborator is optional.
type Engine struct {
	Logger *slog.Logger
	// guild config source; nil means every guild gets config.DefaultGuildConfig
	Config  config.Provider
	Filters filter.FilterSet
	Tracker *tracker.Tracker
	// short-term per-user message context; created on first use if nil
	History  *history.Store
	Sets     setstore.SetStore
	Counters countstore.CountStore
	Notifier Notifier
	// decisions at or above this action are sent to the Notifier (along with any degraded decision). None disables severity notifications.
	NotifyMinAction action.Action
	// used when an event has no timestamp
	Clock func() time.Time

	initOnce sync.Once
	locks    *util.KeyedMutex
	// bounds in-flight notifications
	notifySem chan struct{}
	notifyWG  sync.WaitGroup
}

const (
	historyCapacity   = 100_000
	historyMaxEntries = 200

	maxInflightNotifications = 32
	notifyTimeout            = 30 * time.Second
)

func (eng *Engine) init() {
	eng.initOnce.Do(func() {
		if eng.Logger == nil {
			eng.Logger = slog.Default()
		}
		if eng.History == nil {
			eng.History = history.NewStore(historyCapacity, historyMaxEntries, config.MaxContextWindow)
		}
		if eng.Clock == nil {
			eng.Clock = time.Now
		}
		eng.locks = util.NewKeyedMutex()
		eng.notifySem = make(chan struct{}, maxInflightNotifications)
	})
}

func (eng *Engine) resolveConfig(ctx context.Context, guildID string) (*config.GuildConfig, bool) {
	if eng.Config == nil {
		cfg := config.DefaultGuildConfig()
		cfg.GuildID = guildID
		return &cfg, false
	}
	cfg, err := eng.Config.GuildConfig(ctx, guildID)
	if err != nil || cfg == nil {
		eng.Logger.Warn("failed to load guild moderation config, using defaults", "guild", guildID, "err", err)
		configFallbackCount.Inc()
		def := config.DefaultGuildConfig()
		def.GuildID = guildID
		return &def, true
	}
	return cfg, false
}

// Evaluate decides what to do about an event, using the guild's configured policy. It never returns an error: failures degrade to a more permissive decision, recorded in the decision metadata.
func (eng *Engine) Evaluate(ctx context.Context, msg *event.Message) Decision {
	eng.init()
	if msg == nil {
		return eng.EvaluateWithConfig(ctx, msg, nil)
	}
	cfg, fallback := eng.resolveConfig(ctx, msg.GuildID)
	d := eng.EvaluateWithConfig(ctx, msg, cfg)
	if fallback {
		d.Metadata[MetaConfig] = "default"
	}
	return d
}

// EvaluateWithConfig is like Evaluate with an explicit guild config. The config is not modified.
func (eng *Engine) EvaluateWithConfig(ctx context.Context, msg *event.Message, cfg *config.GuildConfig) (d Decision) {
	eng.init()
	if msg == nil {
		d = allowDecision()
		d.Metadata[MetaError] = "missing event"
		return d
	}
	start := time.Now()
	kind := string(msg.Kind)
	if kind == "" {
		kind = string(event.KindMessage)
	}

	ctx, span := tracer.Start(ctx, "Evaluate")
	defer span.End()

	// similar to an HTTP server, we want to recover any panics from rule execution
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("automod event execution exception", "err", r, "guild", msg.GuildID, "user", msg.AuthorID, "type", kind)
			eventErrorCount.WithLabelValues(kind).Inc()
			span.SetStatus(codes.Error, "panic")
			d = allowDecision()
			d.Metadata[MetaError] = fmt.Sprintf("%v", r)
		}
	}()
	defer func() {
		eventProcessCount.WithLabelValues(kind).Inc()
		eventProcessDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	if err := msg.Validate(); err != nil {
		eventErrorCount.WithLabelValues(kind).Inc()
		d = allowDecision()
		d.Metadata[MetaError] = err.Error()
		return d
	}
	span.SetAttributes(
		attribute.String("guild", msg.GuildID),
		attribute.String("user", msg.AuthorID),
		attribute.String("type", kind),
	)
	logger := eng.Logger.With("guild", msg.GuildID, "user", msg.AuthorID, "type", kind)

	var gc config.GuildConfig
	if cfg != nil {
		gc = cfg.Clone()
	} else {
		gc = config.DefaultGuildConfig()
	}
	for _, err := range gc.Normalize() {
		logger.Warn("guild moderation config problem, using default value", "err", err)
	}

	if gc.IsExempt(msg.AuthorID, msg.AuthorRoles) {
		d = allowDecision()
		d.Metadata[MetaExempt] = "true"
		return d
	}

	now := msg.Timestamp
	if now.IsZero() {
		now = eng.Clock()
	}

	unlock := eng.locks.Lock(util.UserGuildKey(msg.AuthorID, msg.GuildID))
	locked := true
	defer func() {
		if locked {
			unlock()
		}
	}()

	fc := &filter.Context{
		Ctx:     ctx,
		Logger:  logger,
		Message: msg,
		Recent:  eng.History.Recent(msg.GuildID, msg.AuthorID, now),
		Config:  &gc,
		Sets:    eng.Sets,
		Now:     now,
	}
	findings, errs := eng.Filters.Evaluate(fc)
	if msg.Kind == event.KindMessage {
		eng.History.Append(msg.GuildID, msg.AuthorID, filter.EntryFor(msg, now))
	}

	d = allowDecision()
	for _, component := range fc.Degraded() {
		d.markDegraded(component)
	}
	if len(errs) > 0 {
		failed := make([]string, 0, len(errs))
		for _, err := range errs {
			failed = append(failed, err.Error())
		}
		d.Metadata[MetaFilterErrors] = strings.Join(failed, "; ")
	}

	if len(findings) > 0 {
		eng.decide(ctx, logger, msg, &gc, now, findings, &d)
	}

	if d.Degraded {
		for k := range d.Metadata {
			if component, ok := strings.CutPrefix(k, MetaDegraded+"."); ok {
				degradedCount.WithLabelValues(component).Inc()
			}
		}
		span.SetAttributes(attribute.Bool("degraded", true))
	}
	locked = false
	unlock()
	eng.notify(ctx, logger, msg, &d)
	return d
}

// decide turns findings into a blocking decision: records the violation, applies escalation tiers, and fills in d.
func (eng *Engine) decide(ctx context.Context, logger *slog.Logger, msg *event.Message, gc *config.GuildConfig, now time.Time, findings []filter.Finding, d *Decision) {
	winner := strongest(findings)
	candidate := winner.SuggestedAction

	var tier config.Tier
	var tierHit bool
	resolve := func(st store.ViolationState) action.Action {
		final := candidate
		tier, tierHit = gc.Escalation.TierFor(st.WindowCount)
		if !tierHit {
			return final
		}
		final = action.Combine(final, tier.Action)
		// crossing a tier again after earlier escalation pushes past the previous action
		if gc.Escalation.Progressive && tier.Count == st.WindowCount && action.Severity(st.LastAction) >= action.Severity(tier.Action) {
			final = action.Combine(final, action.Escalate(st.LastAction))
		}
		return final
	}

	final := candidate
	out, err := eng.Tracker.Record(ctx, tracker.Violation{
		UserID:   msg.AuthorID,
		GuildID:  msg.GuildID,
		Kind:     string(winner.Kind),
		Severity: action.Severity(candidate),
		At:       now,
	}, gc.Escalation.Window, resolve)
	if err != nil {
		logger.Error("failed to record violation", "err", err)
		d.markDegraded("storage")
	} else {
		final = out.Record.Action
		d.Metadata[MetaViolationCount] = strconv.Itoa(out.State.WindowCount)
		if out.Degraded {
			d.markDegraded("storage")
		}
	}
	if tierHit {
		d.Metadata[MetaTier] = strconv.Itoa(tier.Count)
	}
	if final != candidate {
		d.Metadata[MetaEscalatedFrom] = candidate.String()
		escalationCount.WithLabelValues(final.String()).Inc()
	}

	d.Allowed = final == action.None
	d.Action = final
	d.Severity = action.Severity(final)
	describeFindings(d, findings)

	switch {
	case action.IsTimeBounded(final) && gc.Escalation.TimeoutDuration > 0:
		d.Duration = gc.Escalation.TimeoutDuration
	case final == action.Ban && gc.Escalation.TempBanDuration > 0:
		d.Duration = gc.Escalation.TempBanDuration
	}
	if d.Duration > 0 {
		d.ExpiresAt = now.Add(d.Duration)
	}

	decisionCount.WithLabelValues(final.String()).Inc()
	logger.Info("moderation decision", "action", final.String(), "severity", d.Severity, "filters", d.Metadata[MetaFilters], "violation_count", d.Metadata[MetaViolationCount])
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("action", final.String()))
	eng.persistCounters(ctx, logger, msg, final)
}

func (eng *Engine) persistCounters(ctx context.Context, logger *slog.Logger, msg *event.Message, act action.Action) {
	if eng.Counters == nil {
		return
	}
	if err := eng.Counters.Increment(ctx, CounterDecisions, msg.GuildID+"/"+act.String()); err != nil {
		logger.Warn("failed to increment decision counter", "err", err)
	}
	if err := eng.Counters.IncrementDistinct(ctx, CounterOffenders, msg.GuildID, msg.AuthorID); err != nil {
		logger.Warn("failed to increment offender counter", "err", err)
	}
}

// notify hands the decision to the Notifier in the background. It never blocks: when too many sends are in flight the notification is dropped.
func (eng *Engine) notify(ctx context.Context, logger *slog.Logger, msg *event.Message, d *Decision) {
	if eng.Notifier == nil {
		return
	}
	severe := eng.NotifyMinAction != action.None && !d.Allowed && action.Severity(d.Action) >= action.Severity(eng.NotifyMinAction)
	if !severe && !d.Degraded {
		return
	}
	select {
	case eng.notifySem <- struct{}{}:
	default:
		logger.Warn("notification queue full, dropping notification", "action", d.Action.String())
		notifyDroppedCount.Inc()
		return
	}
	// the caller owns msg and d once Evaluate returns
	m := *msg
	nd := d.clone()
	eng.notifyWG.Add(1)
	go func() {
		defer eng.notifyWG.Done()
		defer func() { <-eng.notifySem }()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := eng.Notifier.SendDecision(sendCtx, &m, &nd); err != nil {
			logger.Error("failed to deliver notification", "err", err)
		}
	}()
}

// WaitNotifications blocks until in-flight notifications finish or ctx is done.
func (eng *Engine) WaitNotifications(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		eng.notifyWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResetViolations clears a user's escalation state in a guild. Their violation history is kept.
func (eng *Engine) ResetViolations(ctx context.Context, userID, guildID string) error {
	eng.init()
	unlock := eng.locks.Lock(util.UserGuildKey(userID, guildID))
	defer unlock()
	eng.History.Forget(guildID, userID)
	return eng.Tracker.ResetViolations(ctx, userID, guildID)
}

// ListViolations returns a user's violation history in a guild, newest first.
func (eng *Engine) ListViolations(ctx context.Context, userID, guildID string, limit int) ([]store.ViolationRecord, error) {
	return eng.Tracker.ListViolations(ctx, userID, guildID, limit)
}

// GetViolationCount returns the number of violations in the user's current escalation window.
func (eng *Engine) GetViolationCount(ctx context.Context, userID, guildID string) int {
	eng.init()
	cfg, _ := eng.resolveConfig(ctx, guildID)
	gc := cfg.Clone()
	gc.Normalize()
	return eng.Tracker.GetViolationCount(ctx, userID, guildID, gc.Escalation.Window)
}

// GetActionCount returns how many times the engine chose an action in a guild, for a countstore period.
func (eng *Engine) GetActionCount(ctx context.Context, guildID string, act action.Action, period string) (int, error) {
	if eng.Counters == nil {
		return 0, nil
	}
	return eng.Counters.GetCount(ctx, CounterDecisions, guildID+"/"+act.String(), period)
}

// GetOffenderCount returns the number of distinct users who received a blocking decision in a guild, for a countstore period.
func (eng *Engine) GetOffenderCount(ctx context.Context, guildID, period string) (int, error) {
	if eng.Counters == nil {
		return 0, nil
	}
	return eng.Counters.GetCountDistinct(ctx, CounterOffenders, guildID, period)
}
