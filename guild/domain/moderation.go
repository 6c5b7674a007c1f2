package domain

// Filter is a per-guild message filter trigger. Messages containing the
// trigger are removed by the moderation handler.
type Filter struct {
	GuildID string `json:"guild_id"`
	Trigger string `json:"trigger"`
}

// TextReaction maps a trigger word to a text response within a guild.
type TextReaction struct {
	GuildID  string `json:"guild_id"`
	Trigger  string `json:"trigger"`
	Response string `json:"response"`
}

// EmojiReaction maps a trigger word to an emoji the bot reacts with.
type EmojiReaction struct {
	GuildID string `json:"guild_id"`
	Trigger string `json:"trigger"`
	Emoji   string `json:"emoji"`
}

// MessageCount is the persisted per-user message counter. The cached value is
// authoritative during a session and reconciled on the sync interval.
type MessageCount struct {
	UserID string `json:"user_id"`
	Count  int64  `json:"count"`
}
