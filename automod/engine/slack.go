package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/event"
	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/util"

	"github.com/RussellLuo/slidingwindow"
)

type SlackNotifier struct {
	SlackWebhookURL string
	Client          *http.Client
	// caps notifications per hour, so a raid doesn't flood the channel; nil means unlimited
	limiter *slidingwindow.Limiter
}

func windowFunc() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

// NewSlackNotifier sends at most perHour messages per hour. A non-positive perHour disables the limit.
func NewSlackNotifier(webhookURL string, perHour int64) *SlackNotifier {
	n := &SlackNotifier{
		SlackWebhookURL: webhookURL,
		Client:          util.RobustHTTPClient(),
	}
	if perHour > 0 {
		n.limiter, _ = slidingwindow.NewLimiter(time.Hour, perHour, windowFunc)
	}
	return n
}

var _ Notifier = (*SlackNotifier)(nil)

func (n *SlackNotifier) SendDecision(ctx context.Context, msg *event.Message, d *Decision) error {
	if n.limiter != nil && !n.limiter.Allow() {
		notifySkippedCount.Inc()
		return nil
	}
	return n.sendSlackMsg(ctx, slackBody(msg, d))
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	// loosely based on: https://golangcode.com/send-slack-messages-without-a-library/

	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = util.RobustHTTPClient()
		n.Client = client
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}

func slackBody(msg *event.Message, d *Decision) string {
	var sb strings.Builder
	if d.Degraded {
		sb.WriteString("⚠️ Automod Decision (degraded) ⚠️\n")
	} else {
		sb.WriteString("⚠️ Automod Decision ⚠️\n")
	}
	fmt.Fprintf(&sb, "guild `%s` / user `%s`", msg.GuildID, msg.AuthorID)
	if msg.AuthorName != "" {
		fmt.Fprintf(&sb, " (%s)", msg.AuthorName)
	}
	if msg.ChannelID != "" {
		fmt.Fprintf(&sb, " / channel `%s`", msg.ChannelID)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Action: `%s` (severity %d)\n", d.Action, d.Severity)
	if d.Duration > 0 {
		fmt.Fprintf(&sb, "Duration: %s\n", d.Duration)
	}
	if d.Reason != "" {
		fmt.Fprintf(&sb, "Reason: %s\n", d.Reason)
	}
	var degraded []string
	for k := range d.Metadata {
		if strings.HasPrefix(k, MetaDegraded+".") {
			degraded = append(degraded, strings.TrimPrefix(k, MetaDegraded+"."))
		}
	}
	if len(degraded) > 0 {
		sort.Strings(degraded)
		fmt.Fprintf(&sb, "Degraded: `%s`\n", strings.Join(degraded, ", "))
	}
	return sb.String()
}
