package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/happyfeetx/kiosk/birthday/domain"
	"github.com/happyfeetx/kiosk/birthday/repository"
)

func setupBirthdayRepo(t *testing.T) *repository.BirthdayGormRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := repository.NewBirthdayGormRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func TestAddUpdatesExistingEntry(t *testing.T) {
	repo := setupBirthdayRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, domain.Birthday{
		GuildID: "g1", UserID: "u1", ChannelID: "c1", Month: 3, Day: 14,
	}))
	require.NoError(t, repo.Add(ctx, domain.Birthday{
		GuildID: "g1", UserID: "u1", ChannelID: "c1", Month: 7, Day: 2,
	}))

	entries, err := repo.ListGuild(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 7, entries[0].Month)
	assert.Equal(t, 2, entries[0].Day)
}

func TestListDueMatchesMonthAndDay(t *testing.T) {
	repo := setupBirthdayRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, domain.Birthday{GuildID: "g1", UserID: "u1", ChannelID: "c1", Month: 3, Day: 14}))
	require.NoError(t, repo.Add(ctx, domain.Birthday{GuildID: "g2", UserID: "u2", ChannelID: "c2", Month: 3, Day: 14}))
	require.NoError(t, repo.Add(ctx, domain.Birthday{GuildID: "g1", UserID: "u3", ChannelID: "c1", Month: 3, Day: 15}))

	due, err := repo.ListDue(ctx, time.Date(2026, 3, 14, 0, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, due, 2)

	none, err := repo.ListDue(ctx, time.Date(2026, 12, 25, 0, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRemoveDeletesAllUserEntries(t *testing.T) {
	repo := setupBirthdayRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, domain.Birthday{GuildID: "g1", UserID: "u1", ChannelID: "c1", Month: 1, Day: 1}))
	require.NoError(t, repo.Add(ctx, domain.Birthday{GuildID: "g1", UserID: "u1", ChannelID: "c2", Month: 1, Day: 1}))

	require.NoError(t, repo.Remove(ctx, "g1", "u1"))

	entries, err := repo.ListGuild(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
