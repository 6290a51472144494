package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/action"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore(t *testing.T) {
	testStore(t, NewMemStore())
}

func TestGormStoreSqlite(t *testing.T) {
	db, err := SetupDatabase("sqlite://"+filepath.Join(t.TempDir(), "automod.sqlite"), 1)
	require.NoError(t, err)
	s, err := NewGormStore(db)
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
}

func TestPebbleStore(t *testing.T) {
	s, err := OpenPebbleStore("automod", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
}

func TestSetupDatabaseRejectsUnknownScheme(t *testing.T) {
	_, err := SetupDatabase("mysql://localhost/automod", 1)
	assert.Error(t, err)
}

func testStore(t *testing.T, s Store) {
	t.Run("violations", func(t *testing.T) { testViolations(t, s) })
	t.Run("state", func(t *testing.T) { testState(t, s) })
	t.Run("scheduled", func(t *testing.T) { testScheduled(t, s) })
}

func testViolations(t *testing.T, s Store) {
	assert := assert.New(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	out, err := s.ListViolations(ctx, "u1", "g1", 0)
	assert.NoError(err)
	assert.Empty(out)

	for i, id := range []string{"r1", "r2", "r3"} {
		assert.NoError(s.SaveViolation(ctx, &ViolationRecord{
			ID:        id,
			UserID:    "u1",
			GuildID:   "g1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Kind:      "spam",
			Severity:  1,
			Action:    action.DeleteMessage,
		}))
	}
	// other user and guild must not leak into the listing
	assert.NoError(s.SaveViolation(ctx, &ViolationRecord{ID: "r4", UserID: "u10", GuildID: "g1", Timestamp: base, Kind: "word"}))
	assert.NoError(s.SaveViolation(ctx, &ViolationRecord{ID: "r5", UserID: "u1", GuildID: "g2", Timestamp: base, Kind: "word"}))

	out, err = s.ListViolations(ctx, "u1", "g1", 0)
	assert.NoError(err)
	if assert.Len(out, 3) {
		assert.Equal("r3", out[0].ID)
		assert.Equal("r2", out[1].ID)
		assert.Equal("r1", out[2].ID)
		assert.Equal("spam", out[0].Kind)
		assert.Equal(action.DeleteMessage, out[0].Action)
		assert.True(out[0].Timestamp.Equal(base.Add(2 * time.Minute)))
	}

	out, err = s.ListViolations(ctx, "u1", "g1", 2)
	assert.NoError(err)
	if assert.Len(out, 2) {
		assert.Equal("r3", out[0].ID)
	}
}

func testState(t *testing.T, s Store) {
	assert := assert.New(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.LoadViolationState(ctx, "u1", "g1")
	assert.ErrorIs(err, ErrNotFound)

	st := &ViolationState{
		UserID:        "u1",
		GuildID:       "g1",
		WindowStart:   now,
		WindowCount:   1,
		TotalCount:    1,
		LastViolation: now,
		LastAction:    action.DeleteMessage,
		UpdatedAt:     now,
	}
	assert.NoError(s.SaveViolationState(ctx, st))

	st.WindowCount = 2
	st.TotalCount = 2
	st.WarningCount = 1
	st.LastAction = action.DeleteAndWarn
	st.UpdatedAt = now.Add(time.Minute)
	assert.NoError(s.SaveViolationState(ctx, st))

	got, err := s.LoadViolationState(ctx, "u1", "g1")
	assert.NoError(err)
	assert.Equal(2, got.WindowCount)
	assert.Equal(2, got.TotalCount)
	assert.Equal(1, got.WarningCount)
	assert.Equal(action.DeleteAndWarn, got.LastAction)
	assert.True(got.WindowStart.Equal(now))
	// the writer's timestamp is kept as given
	assert.True(got.UpdatedAt.Equal(now.Add(time.Minute)))

	_, err = s.LoadViolationState(ctx, "u1", "g2")
	assert.ErrorIs(err, ErrNotFound)
}

func testScheduled(t *testing.T, s Store) {
	assert := assert.New(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	later := &ScheduledAction{ID: "a2", UserID: "u1", GuildID: "g1", Action: action.Ban, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	sooner := &ScheduledAction{ID: "a1", UserID: "u2", GuildID: "g1", Action: action.Timeout, ExpiresAt: now.Add(time.Minute), CreatedAt: now}
	assert.NoError(s.SaveScheduledAction(ctx, later))
	assert.NoError(s.SaveScheduledAction(ctx, sooner))

	pending, err := s.LoadPendingScheduledActions(ctx)
	assert.NoError(err)
	if assert.Len(pending, 2) {
		assert.Equal("a1", pending[0].ID)
		assert.Equal("a2", pending[1].ID)
		assert.Equal(action.Ban, pending[1].Action)
	}

	// upsert extends expiry
	later.ExpiresAt = now.Add(2 * time.Hour)
	assert.NoError(s.SaveScheduledAction(ctx, later))
	got, err := s.GetScheduledAction(ctx, "a2")
	assert.NoError(err)
	assert.True(got.ExpiresAt.Equal(now.Add(2 * time.Hour)))

	ok, err := s.MarkFired(ctx, "a1")
	assert.NoError(err)
	assert.True(ok)
	ok, err = s.MarkFired(ctx, "a1")
	assert.NoError(err)
	assert.False(ok)
	ok, err = s.MarkFired(ctx, "missing")
	assert.NoError(err)
	assert.False(ok)

	got, err = s.GetScheduledAction(ctx, "a1")
	assert.NoError(err)
	assert.True(got.Fired)

	pending, err = s.LoadPendingScheduledActions(ctx)
	assert.NoError(err)
	if assert.Len(pending, 1) {
		assert.Equal("a2", pending[0].ID)
	}

	assert.NoError(s.DeleteScheduledAction(ctx, "a2"))
	_, err = s.GetScheduledAction(ctx, "a2")
	assert.ErrorIs(err, ErrNotFound)
	pending, err = s.LoadPendingScheduledActions(ctx)
	assert.NoError(err)
	assert.Empty(pending)

	// cancelling only removes entries that have not fired
	assert.NoError(s.SaveScheduledAction(ctx, &ScheduledAction{ID: "a3", UserID: "u3", GuildID: "g1", Action: action.Timeout, ExpiresAt: now, CreatedAt: now}))
	ok, err = s.CancelScheduledAction(ctx, "a1")
	assert.NoError(err)
	assert.False(ok)
	_, err = s.GetScheduledAction(ctx, "a1")
	assert.NoError(err)
	ok, err = s.CancelScheduledAction(ctx, "a3")
	assert.NoError(err)
	assert.True(ok)
	_, err = s.GetScheduledAction(ctx, "a3")
	assert.ErrorIs(err, ErrNotFound)
	ok, err = s.CancelScheduledAction(ctx, "a3")
	assert.NoError(err)
	assert.False(ok)
	ok, err = s.MarkFired(ctx, "a3")
	assert.NoError(err)
	assert.False(ok)
}
