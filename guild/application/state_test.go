package application_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/happyfeetx/kiosk/guild/application"
	"github.com/happyfeetx/kiosk/guild/domain"
	"github.com/happyfeetx/kiosk/guild/repository"
)

func setupTestRepo(t *testing.T) *repository.GuildGormRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := repository.NewGuildGormRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func setupTestState(t *testing.T) (*application.State, *repository.GuildGormRepository) {
	t.Helper()
	repo := setupTestRepo(t)
	state := application.NewState(repo)
	require.NoError(t, state.Hydrate(context.Background()))
	return state, repo
}

func TestConfigReturnsDefaultForUnknownGuild(t *testing.T) {
	state, _ := setupTestState(t)

	cfg := state.Config("guild-without-record")

	assert.Equal(t, "guild-without-record", cfg.GuildID)
	assert.Empty(t, cfg.Prefix)
	assert.Empty(t, cfg.LogChannelID)
	assert.False(t, cfg.LoggingEnabled())
	assert.False(t, cfg.Antispam.Enabled)
	assert.Equal(t, 5, cfg.Antispam.Sensitivity)
	assert.Equal(t, domain.ActionTemporaryMute, cfg.Antispam.Action)
	assert.False(t, cfg.Ratelimit.Enabled)
	assert.Equal(t, 5, cfg.Ratelimit.Sensitivity)
	assert.False(t, cfg.Linkfilter.Enabled)
}

func TestUpdateConfigWritesThroughToStore(t *testing.T) {
	state, repo := setupTestState(t)
	ctx := context.Background()

	cfg, err := state.UpdateConfig(ctx, "g1", func(c *domain.Config) {
		c.Prefix = "?"
		c.LogChannelID = "chan-42"
	})
	require.NoError(t, err)
	assert.Equal(t, "?", cfg.Prefix)
	assert.True(t, cfg.LoggingEnabled())

	// Cached copy serves reads without touching the store again.
	assert.Equal(t, "?", state.Prefix("g1"))

	// A fresh cache hydrated from the same store sees the update.
	reloaded := application.NewState(repo)
	require.NoError(t, reloaded.Hydrate(ctx))
	assert.Equal(t, "?", reloaded.Config("g1").Prefix)
	assert.Equal(t, "chan-42", reloaded.Config("g1").LogChannelID)
}

func TestUpdateConfigPreservesOtherFields(t *testing.T) {
	state, _ := setupTestState(t)
	ctx := context.Background()

	_, err := state.UpdateConfig(ctx, "g1", func(c *domain.Config) {
		c.Currency = "gems"
	})
	require.NoError(t, err)

	cfg, err := state.UpdateConfig(ctx, "g1", func(c *domain.Config) {
		c.Antispam.Enabled = true
	})
	require.NoError(t, err)

	assert.Equal(t, "gems", cfg.Currency)
	assert.True(t, cfg.Antispam.Enabled)
	assert.Equal(t, 5, cfg.Antispam.Sensitivity)
}

func TestBlockUserIdempotent(t *testing.T) {
	state, repo := setupTestState(t)
	ctx := context.Background()

	require.NoError(t, state.BlockUser(ctx, "u1"))
	require.NoError(t, state.BlockUser(ctx, "u1"))
	assert.True(t, state.IsBlockedUser("u1"))
	assert.False(t, state.IsBlockedUser("u2"))

	users, err := repo.BlockedUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, state.UnblockUser(ctx, "u1"))
	require.NoError(t, state.UnblockUser(ctx, "u1"))
	assert.False(t, state.IsBlockedUser("u1"))
}

func TestBlockChannelWritesThrough(t *testing.T) {
	state, repo := setupTestState(t)
	ctx := context.Background()

	require.NoError(t, state.BlockChannel(ctx, "c1"))
	assert.True(t, state.IsBlockedChannel("c1"))

	reloaded := application.NewState(repo)
	require.NoError(t, reloaded.Hydrate(ctx))
	assert.True(t, reloaded.IsBlockedChannel("c1"))
}

func TestFiltersMatchCaseInsensitive(t *testing.T) {
	state, _ := setupTestState(t)
	ctx := context.Background()

	require.NoError(t, state.AddFilter(ctx, domain.Filter{GuildID: "g1", Trigger: "spoiler"}))
	require.NoError(t, state.AddFilter(ctx, domain.Filter{GuildID: "g1", Trigger: "leak"}))

	assert.True(t, state.MatchesFilter("g1", "huge SPOILER ahead"))
	assert.True(t, state.MatchesFilter("g1", "spoilers everywhere"))
	assert.False(t, state.MatchesFilter("g1", "nothing to see"))
	assert.False(t, state.MatchesFilter("g2", "huge SPOILER ahead"))

	assert.ElementsMatch(t, []string{"spoiler", "leak"}, state.GuildFilters("g1"))
	assert.Empty(t, state.GuildFilters("g2"))

	require.NoError(t, state.RemoveFilter(ctx, domain.Filter{GuildID: "g1", Trigger: "spoiler"}))
	assert.False(t, state.MatchesFilter("g1", "huge SPOILER ahead"))
	assert.ElementsMatch(t, []string{"leak"}, state.GuildFilters("g1"))
}

func TestTextAndEmojiReactions(t *testing.T) {
	state, _ := setupTestState(t)
	ctx := context.Background()

	require.NoError(t, state.AddTextReaction(ctx, domain.TextReaction{
		GuildID: "g1", Trigger: "hello", Response: "hi there",
	}))
	require.NoError(t, state.AddEmojiReaction(ctx, domain.EmojiReaction{
		GuildID: "g1", Trigger: "cake", Emoji: "🎂",
	}))

	resp, ok := state.TextResponse("g1", "well Hello friend")
	assert.True(t, ok)
	assert.Equal(t, "hi there", resp)

	emoji, ok := state.EmojiResponse("g1", "who wants cake?")
	assert.True(t, ok)
	assert.Equal(t, "🎂", emoji)

	_, ok = state.TextResponse("g1", "goodbye")
	assert.False(t, ok)

	require.NoError(t, state.RemoveTextReaction(ctx, "g1", "hello"))
	_, ok = state.TextResponse("g1", "hello")
	assert.False(t, ok)
}

func TestConcurrentIncrementsAllCounted(t *testing.T) {
	state, repo := setupTestState(t)
	ctx := context.Background()

	const goroutines = 20
	const perGoroutine = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				state.IncrementMessageCount("u1")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines*perGoroutine), state.MessageCount("u1"))

	written, err := state.FlushMessageCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	stored, err := repo.MessageCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines*perGoroutine), stored)
}

func TestFlushSkipsCleanCounters(t *testing.T) {
	state, _ := setupTestState(t)
	ctx := context.Background()

	state.IncrementMessageCount("u1")
	state.IncrementMessageCount("u2")

	written, err := state.FlushMessageCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	// Nothing changed since, so nothing is written.
	written, err = state.FlushMessageCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, written)

	state.IncrementMessageCount("u2")
	written, err = state.FlushMessageCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, written)
}

func TestFlushConcurrentWithIncrementsLosesNothing(t *testing.T) {
	state, repo := setupTestState(t)
	ctx := context.Background()

	const total = 500
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			state.IncrementMessageCount("u1")
		}
	}()

	// Flush while increments are racing; the snapshot may lag the cache but
	// must never exceed it.
	for i := 0; i < 10; i++ {
		_, err := state.FlushMessageCounts(ctx)
		require.NoError(t, err)
	}
	wg.Wait()

	_, err := state.FlushMessageCounts(ctx)
	require.NoError(t, err)

	stored, err := repo.MessageCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(total), stored)
	assert.Equal(t, int64(total), state.MessageCount("u1"))
}

func TestHydrateRestoresCounters(t *testing.T) {
	state, repo := setupTestState(t)
	ctx := context.Background()

	state.IncrementMessageCount("u1")
	state.IncrementMessageCount("u1")
	state.IncrementMessageCount("u1")
	_, err := state.FlushMessageCounts(ctx)
	require.NoError(t, err)

	reloaded := application.NewState(repo)
	require.NoError(t, reloaded.Hydrate(ctx))
	assert.Equal(t, int64(3), reloaded.MessageCount("u1"))
}
