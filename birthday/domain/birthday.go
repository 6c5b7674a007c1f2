package domain

import (
	"context"
	"time"
)

// Birthday is a per-guild birthday notification entry. Month and Day are the
// calendar date the greeting is sent on, every year.
type Birthday struct {
	GuildID   string `json:"guild_id"`
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	Month     int    `json:"month"`
	Day       int    `json:"day"`
}

// Repository stores birthday entries. One entry per (guild, user, channel).
type Repository interface {
	Init(ctx context.Context) error
	Add(ctx context.Context, b Birthday) error
	Remove(ctx context.Context, guildID, userID string) error
	ListGuild(ctx context.Context, guildID string) ([]Birthday, error)
	// ListDue returns every entry matching the month and day of date.
	ListDue(ctx context.Context, date time.Time) ([]Birthday, error)
}
