package domain

// PunishmentAction is what a protection module does to an offender once its
// sensitivity threshold is crossed.
type PunishmentAction string

const (
	ActionMute          PunishmentAction = "mute"
	ActionKick          PunishmentAction = "kick"
	ActionTemporaryBan  PunishmentAction = "tempban"
	ActionPermanentBan  PunishmentAction = "ban"
	ActionTemporaryMute PunishmentAction = "tempmute"
)

const (
	defaultSpamAction    = ActionTemporaryMute
	defaultSpamHits      = 5
	defaultRatelimitHits = 5
)

// LinkfilterSettings holds the per-category toggles of the link filter.
type LinkfilterSettings struct {
	Enabled            bool `json:"enabled"`
	BlockBooters       bool `json:"block_booters"`
	BlockDiscordInvite bool `json:"block_invites"`
	BlockIPLoggers     bool `json:"block_ip_loggers"`
	BlockShockSites    bool `json:"block_shock_sites"`
	BlockURLShortener  bool `json:"block_url_shorteners"`
}

// AntispamSettings controls the spam protection module.
type AntispamSettings struct {
	Enabled     bool             `json:"enabled"`
	Sensitivity int              `json:"sensitivity"`
	Action      PunishmentAction `json:"action"`
}

// RatelimitSettings controls the message rate protection module.
type RatelimitSettings struct {
	Enabled     bool             `json:"enabled"`
	Sensitivity int              `json:"sensitivity"`
	Action      PunishmentAction `json:"action"`
}

// Config is the per-guild configuration. An empty Prefix or Currency means
// "use the global default".
type Config struct {
	GuildID            string             `json:"guild_id"`
	Prefix             string             `json:"prefix"`
	Currency           string             `json:"currency"`
	LogChannelID       string             `json:"log_channel_id"`
	SuggestionsEnabled bool               `json:"suggestions_enabled"`
	ReactionResponse   bool               `json:"reaction_response"`
	Linkfilter         LinkfilterSettings `json:"linkfilter"`
	Antispam           AntispamSettings   `json:"antispam"`
	Ratelimit          RatelimitSettings  `json:"ratelimit"`
}

// LoggingEnabled reports whether the guild has an action-log channel set.
func (c *Config) LoggingEnabled() bool {
	return c.LogChannelID != ""
}

// DefaultConfig is what a guild without an explicit record uses: no log
// channel, all toggles off, prefix and currency deferring to the global
// defaults. Protection modules start disabled with their stock thresholds.
func DefaultConfig(guildID string) *Config {
	return &Config{
		GuildID: guildID,
		Antispam: AntispamSettings{
			Sensitivity: defaultSpamHits,
			Action:      defaultSpamAction,
		},
		Ratelimit: RatelimitSettings{
			Sensitivity: defaultRatelimitHits,
			Action:      defaultSpamAction,
		},
	}
}
