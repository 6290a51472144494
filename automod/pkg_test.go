package automod

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEngineFromPackage(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cfg := DefaultGuildConfig()
	cfg.Words.Enabled = true
	cfg.Words.Words = []string{"scam"}
	eng := Engine{
		Filters: DefaultFilterSet(nil),
		Tracker: NewTracker(NewMemStore(), nil),
	}

	now := time.Now().UTC()
	msg := Message{AuthorID: "u1", GuildID: "g1", Content: "hello there", Timestamp: now}
	d := eng.EvaluateWithConfig(ctx, &msg, &cfg)
	assert.True(d.Allowed)
	assert.Equal(ActionNone, d.Action)

	msg = Message{AuthorID: "u1", GuildID: "g1", Content: "this is a scam", Timestamp: now.Add(time.Minute)}
	d = eng.EvaluateWithConfig(ctx, &msg, &cfg)
	assert.False(d.Allowed)
	assert.Equal(ActionDeleteMessage, d.Action)
	assert.Equal(1, eng.GetViolationCount(ctx, "u1", "g1"))
}
