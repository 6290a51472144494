package automod

import (
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/action"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/config"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/countstore"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/engine"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/event"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/filter"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/scheduler"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/store"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/tracker"
)

type Engine = engine.Engine
type Decision = engine.Decision
type Notifier = engine.Notifier
type SlackNotifier = engine.SlackNotifier

type Action = action.Action
type Message = event.Message
type Mentions = event.Mentions
type Finding = filter.Finding
type FilterSet = filter.FilterSet

type GuildConfig = config.GuildConfig
type ConfigProvider = config.Provider

type Tracker = tracker.Tracker
type Scheduler = scheduler.Scheduler
type ReversalFunc = scheduler.ReversalFunc

type Store = store.Store
type ViolationRecord = store.ViolationRecord
type ViolationState = store.ViolationState
type ScheduledAction = store.ScheduledAction

const (
	ActionNone             = action.None
	ActionLogOnly          = action.LogOnly
	ActionDeleteMessage    = action.DeleteMessage
	ActionWarnUser         = action.WarnUser
	ActionTimeout          = action.Timeout
	ActionDeleteAndWarn    = action.DeleteAndWarn
	ActionDeleteAndTimeout = action.DeleteAndTimeout
	ActionKick             = action.Kick
	ActionBan              = action.Ban
)

var (
	PeriodTotal = countstore.PeriodTotal
	PeriodDay   = countstore.PeriodDay
	PeriodHour  = countstore.PeriodHour

	DefaultGuildConfig = config.DefaultGuildConfig
	DefaultFilterSet   = filter.DefaultFilterSet
	NewMemStore        = store.NewMemStore
	NewTracker         = tracker.NewTracker
	NewScheduler       = scheduler.NewScheduler
)
