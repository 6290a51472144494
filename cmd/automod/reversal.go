package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/store"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/util"

	"github.com/carlmjohnson/versioninfo"
)

// ReversalRequest is POSTed to the platform adapter when a time-bounded action expires.
type ReversalRequest struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	GuildID   string    `json:"guild_id"`
	Action    string    `json:"action"`
	ExpiresAt time.Time `json:"expires_at"`
	Reason    string    `json:"reason,omitempty"`
}

// WebhookReverser delivers reversals to the adapter's webhook. With no URL configured, reversals are only logged.
type WebhookReverser struct {
	URL    string
	Client *http.Client
	Logger *slog.Logger
}

func NewWebhookReverser(url string, logger *slog.Logger) *WebhookReverser {
	return &WebhookReverser{
		URL:    url,
		Client: util.RobustHTTPClient(),
		Logger: logger,
	}
}

func (r *WebhookReverser) Reverse(ctx context.Context, sa store.ScheduledAction) error {
	if r.URL == "" {
		r.Logger.Info("no reversal webhook configured, skipping delivery", "id", sa.ID, "guild", sa.GuildID, "user", sa.UserID, "action", sa.Action.String())
		return nil
	}
	body, err := json.Marshal(ReversalRequest{
		ID:        sa.ID,
		UserID:    sa.UserID,
		GuildID:   sa.GuildID,
		Action:    sa.Action.String(),
		ExpiresAt: sa.ExpiresAt,
		Reason:    sa.Reason,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "automod/"+versioninfo.Short())
	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering reversal: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reversal webhook failed: status=%d", resp.StatusCode)
	}
	return nil
}
