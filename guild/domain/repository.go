package domain

import (
	"context"
	"errors"
)

// ErrConfigNotFound is returned by Repository.Config when a guild has no
// explicit record. Callers are expected to fall back to DefaultConfig.
var ErrConfigNotFound = errors.New("guild config not found")

// Repository is the persistence gateway for guild-scoped state. The shared
// state cache is the only consumer; command handlers never touch it directly.
type Repository interface {
	Init(ctx context.Context) error

	// Guild configuration
	Config(ctx context.Context, guildID string) (*Config, error)
	// UpdateConfig applies mutate to the persisted record (created from the
	// default when missing) inside a single transaction and returns the
	// stored result.
	UpdateConfig(ctx context.Context, guildID string, mutate func(*Config)) (*Config, error)
	AllConfigs(ctx context.Context) ([]*Config, error)

	// Moderation sets
	BlockedUsers(ctx context.Context) ([]string, error)
	BlockedChannels(ctx context.Context) ([]string, error)
	BlockUser(ctx context.Context, userID string) error
	UnblockUser(ctx context.Context, userID string) error
	BlockChannel(ctx context.Context, channelID string) error
	UnblockChannel(ctx context.Context, channelID string) error

	// Filters and reactions, grouped by guild
	Filters(ctx context.Context) ([]Filter, error)
	AddFilter(ctx context.Context, f Filter) error
	RemoveFilter(ctx context.Context, f Filter) error
	RemoveGuildFilters(ctx context.Context, guildID string) error
	TextReactions(ctx context.Context) ([]TextReaction, error)
	AddTextReaction(ctx context.Context, r TextReaction) error
	RemoveTextReaction(ctx context.Context, guildID, trigger string) error
	EmojiReactions(ctx context.Context) ([]EmojiReaction, error)
	AddEmojiReaction(ctx context.Context, r EmojiReaction) error
	RemoveEmojiReaction(ctx context.Context, guildID, trigger string) error

	// Message counters
	MessageCounts(ctx context.Context) ([]MessageCount, error)
	MessageCount(ctx context.Context, userID string) (int64, error)
	SetMessageCount(ctx context.Context, userID string, count int64) error
}
