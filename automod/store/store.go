package store

import (
	"context"
	"errors"
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/action"
)

var ErrNotFound = errors.New("not found")

// ViolationRecord is one entry in a user's audit trail. Records are append-only.
type ViolationRecord struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	GuildID   string        `json:"guild_id"`
	Timestamp time.Time     `json:"timestamp"`
	Kind      string        `json:"kind"`
	Severity  int           `json:"severity"`
	Action    action.Action `json:"action"`
}

// ViolationState is the mutable escalation state for one user in one guild.
type ViolationState struct {
	UserID       string `json:"user_id"`
	GuildID      string `json:"guild_id"`
	WarningCount int    `json:"warning_count"`
	// start of the current counting window; zero before the first violation
	WindowStart time.Time `json:"window_start"`
	// violations within the current window
	WindowCount   int           `json:"window_count"`
	TotalCount    int           `json:"total_count"`
	LastViolation time.Time     `json:"last_violation"`
	LastAction    action.Action `json:"last_action"`
	// set by the writer on every save; orders copies held in different places
	UpdatedAt time.Time `json:"updated_at"`
}

// ScheduledAction is a time-bounded action awaiting reversal.
type ScheduledAction struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	GuildID   string        `json:"guild_id"`
	Action    action.Action `json:"action"`
	ExpiresAt time.Time     `json:"expires_at"`
	Fired     bool          `json:"fired"`
	CreatedAt time.Time     `json:"created_at"`
	Reason    string        `json:"reason,omitempty"`
}

// Store persists violation history and escalation state, along with scheduled actions awaiting expiry.
type Store interface {
	SaveViolation(ctx context.Context, rec *ViolationRecord) error
	// newest first; limit <= 0 means no limit
	ListViolations(ctx context.Context, userID, guildID string, limit int) ([]ViolationRecord, error)
	// returns ErrNotFound if the user has no state in the guild
	LoadViolationState(ctx context.Context, userID, guildID string) (*ViolationState, error)
	SaveViolationState(ctx context.Context, st *ViolationState) error

	// inserts or replaces by ID
	SaveScheduledAction(ctx context.Context, sa *ScheduledAction) error
	GetScheduledAction(ctx context.Context, id string) (*ScheduledAction, error)
	// all entries not yet fired, soonest first
	LoadPendingScheduledActions(ctx context.Context) ([]ScheduledAction, error)
	// MarkFired atomically sets fired=true. Returns false if the entry was already fired or doesn't exist.
	MarkFired(ctx context.Context, id string) (bool, error)
	DeleteScheduledAction(ctx context.Context, id string) error
	// CancelScheduledAction atomically deletes the entry if it has not fired. Returns false if it had fired or doesn't exist.
	CancelScheduledAction(ctx context.Context, id string) (bool, error)

	Close() error
}
