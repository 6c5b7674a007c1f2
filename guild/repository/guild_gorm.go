package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/happyfeetx/kiosk/guild/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Persistence Models ---

type guildConfigModel struct {
	GuildID            string    `gorm:"primaryKey;column:guild_id"`
	Prefix             string    `gorm:"column:prefix"`
	Currency           string    `gorm:"column:currency"`
	LogChannelID       string    `gorm:"column:log_channel_id"`
	SuggestionsEnabled bool      `gorm:"column:suggestions_enabled;default:false"`
	ReactionResponse   bool      `gorm:"column:reaction_response;default:false"`
	LinkfilterJSON     string    `gorm:"column:linkfilter_settings;type:text"`
	AntispamJSON       string    `gorm:"column:antispam_settings;type:text"`
	RatelimitJSON      string    `gorm:"column:ratelimit_settings;type:text"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (guildConfigModel) TableName() string { return "guild_configs" }

type blockedUserModel struct {
	UserID    string    `gorm:"primaryKey;column:user_id"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (blockedUserModel) TableName() string { return "blocked_users" }

type blockedChannelModel struct {
	ChannelID string    `gorm:"primaryKey;column:channel_id"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (blockedChannelModel) TableName() string { return "blocked_channels" }

type filterModel struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	GuildID string `gorm:"column:guild_id;not null;index;uniqueIndex:idx_filter_guild_trigger"`
	Trigger string `gorm:"column:trigger;not null;uniqueIndex:idx_filter_guild_trigger"`
}

func (filterModel) TableName() string { return "filters" }

type textReactionModel struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	GuildID  string `gorm:"column:guild_id;not null;index;uniqueIndex:idx_treact_guild_trigger"`
	Trigger  string `gorm:"column:trigger;not null;uniqueIndex:idx_treact_guild_trigger"`
	Response string `gorm:"column:response;not null"`
}

func (textReactionModel) TableName() string { return "text_reactions" }

type emojiReactionModel struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	GuildID string `gorm:"column:guild_id;not null;index;uniqueIndex:idx_ereact_guild_trigger"`
	Trigger string `gorm:"column:trigger;not null;uniqueIndex:idx_ereact_guild_trigger"`
	Emoji   string `gorm:"column:emoji;not null"`
}

func (emojiReactionModel) TableName() string { return "emoji_reactions" }

type messageCountModel struct {
	UserID    string    `gorm:"primaryKey;column:user_id"`
	Count     int64     `gorm:"column:count;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (messageCountModel) TableName() string { return "message_counts" }

// --- Repository Implementation ---

type GuildGormRepository struct {
	db *gorm.DB
}

// lockForUpdate takes a row lock on dialects that support SELECT FOR UPDATE,
// so concurrent config mutators serialize on the read. SQLite has no such
// clause; its single-writer pool serializes anyway.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func NewGuildGormRepository(db *gorm.DB) *GuildGormRepository {
	return &GuildGormRepository{db: db}
}

func (r *GuildGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&guildConfigModel{},
		&blockedUserModel{},
		&blockedChannelModel{},
		&filterModel{},
		&textReactionModel{},
		&emojiReactionModel{},
		&messageCountModel{},
	)
}

// Guild configuration

func (r *GuildGormRepository) Config(ctx context.Context, guildID string) (*domain.Config, error) {
	var m guildConfigModel
	if err := r.db.WithContext(ctx).First(&m, "guild_id = ?", guildID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrConfigNotFound
		}
		return nil, err
	}
	return fromConfigModel(m), nil
}

func (r *GuildGormRepository) UpdateConfig(ctx context.Context, guildID string, mutate func(*domain.Config)) (*domain.Config, error) {
	var out *domain.Config
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m guildConfigModel
		err := lockForUpdate(tx).First(&m, "guild_id = ?", guildID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			m = toConfigModel(domain.DefaultConfig(guildID))
		case err != nil:
			return err
		}

		cfg := fromConfigModel(m)
		mutate(cfg)
		cfg.GuildID = guildID

		m = toConfigModel(cfg)
		if err := tx.Save(&m).Error; err != nil {
			return err
		}
		out = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GuildGormRepository) AllConfigs(ctx context.Context) ([]*domain.Config, error) {
	var models []guildConfigModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}
	configs := make([]*domain.Config, 0, len(models))
	for _, m := range models {
		configs = append(configs, fromConfigModel(m))
	}
	return configs, nil
}

// Moderation sets

func (r *GuildGormRepository) BlockedUsers(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&blockedUserModel{}).Pluck("user_id", &ids).Error
	return ids, err
}

func (r *GuildGormRepository) BlockedChannels(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&blockedChannelModel{}).Pluck("channel_id", &ids).Error
	return ids, err
}

func (r *GuildGormRepository) BlockUser(ctx context.Context, userID string) error {
	m := blockedUserModel{UserID: userID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
}

func (r *GuildGormRepository) UnblockUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Delete(&blockedUserModel{}, "user_id = ?", userID).Error
}

func (r *GuildGormRepository) BlockChannel(ctx context.Context, channelID string) error {
	m := blockedChannelModel{ChannelID: channelID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
}

func (r *GuildGormRepository) UnblockChannel(ctx context.Context, channelID string) error {
	return r.db.WithContext(ctx).Delete(&blockedChannelModel{}, "channel_id = ?", channelID).Error
}

// Filters and reactions

func (r *GuildGormRepository) Filters(ctx context.Context) ([]domain.Filter, error) {
	var models []filterModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}
	filters := make([]domain.Filter, 0, len(models))
	for _, m := range models {
		filters = append(filters, domain.Filter{GuildID: m.GuildID, Trigger: m.Trigger})
	}
	return filters, nil
}

func (r *GuildGormRepository) AddFilter(ctx context.Context, f domain.Filter) error {
	m := filterModel{GuildID: f.GuildID, Trigger: f.Trigger}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
}

func (r *GuildGormRepository) RemoveFilter(ctx context.Context, f domain.Filter) error {
	return r.db.WithContext(ctx).
		Delete(&filterModel{}, `guild_id = ? AND "trigger" = ?`, f.GuildID, f.Trigger).Error
}

func (r *GuildGormRepository) RemoveGuildFilters(ctx context.Context, guildID string) error {
	return r.db.WithContext(ctx).Delete(&filterModel{}, "guild_id = ?", guildID).Error
}

func (r *GuildGormRepository) TextReactions(ctx context.Context) ([]domain.TextReaction, error) {
	var models []textReactionModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}
	reactions := make([]domain.TextReaction, 0, len(models))
	for _, m := range models {
		reactions = append(reactions, domain.TextReaction{GuildID: m.GuildID, Trigger: m.Trigger, Response: m.Response})
	}
	return reactions, nil
}

func (r *GuildGormRepository) AddTextReaction(ctx context.Context, re domain.TextReaction) error {
	m := textReactionModel{GuildID: re.GuildID, Trigger: re.Trigger, Response: re.Response}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}, {Name: "trigger"}},
		DoUpdates: clause.AssignmentColumns([]string{"response"}),
	}).Create(&m).Error
}

func (r *GuildGormRepository) RemoveTextReaction(ctx context.Context, guildID, trigger string) error {
	return r.db.WithContext(ctx).
		Delete(&textReactionModel{}, `guild_id = ? AND "trigger" = ?`, guildID, trigger).Error
}

func (r *GuildGormRepository) EmojiReactions(ctx context.Context) ([]domain.EmojiReaction, error) {
	var models []emojiReactionModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}
	reactions := make([]domain.EmojiReaction, 0, len(models))
	for _, m := range models {
		reactions = append(reactions, domain.EmojiReaction{GuildID: m.GuildID, Trigger: m.Trigger, Emoji: m.Emoji})
	}
	return reactions, nil
}

func (r *GuildGormRepository) AddEmojiReaction(ctx context.Context, re domain.EmojiReaction) error {
	m := emojiReactionModel{GuildID: re.GuildID, Trigger: re.Trigger, Emoji: re.Emoji}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}, {Name: "trigger"}},
		DoUpdates: clause.AssignmentColumns([]string{"emoji"}),
	}).Create(&m).Error
}

func (r *GuildGormRepository) RemoveEmojiReaction(ctx context.Context, guildID, trigger string) error {
	return r.db.WithContext(ctx).
		Delete(&emojiReactionModel{}, `guild_id = ? AND "trigger" = ?`, guildID, trigger).Error
}

// Message counters

func (r *GuildGormRepository) MessageCounts(ctx context.Context) ([]domain.MessageCount, error) {
	var models []messageCountModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}
	counts := make([]domain.MessageCount, 0, len(models))
	for _, m := range models {
		counts = append(counts, domain.MessageCount{UserID: m.UserID, Count: m.Count})
	}
	return counts, nil
}

func (r *GuildGormRepository) MessageCount(ctx context.Context, userID string) (int64, error) {
	var m messageCountModel
	if err := r.db.WithContext(ctx).First(&m, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return m.Count, nil
}

func (r *GuildGormRepository) SetMessageCount(ctx context.Context, userID string, count int64) error {
	m := messageCountModel{UserID: userID, Count: count}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"count", "updated_at"}),
	}).Create(&m).Error
}

// --- Converters ---

func toConfigModel(c *domain.Config) guildConfigModel {
	return guildConfigModel{
		GuildID:            c.GuildID,
		Prefix:             c.Prefix,
		Currency:           c.Currency,
		LogChannelID:       c.LogChannelID,
		SuggestionsEnabled: c.SuggestionsEnabled,
		ReactionResponse:   c.ReactionResponse,
		LinkfilterJSON:     marshalSettings(c.Linkfilter),
		AntispamJSON:       marshalSettings(c.Antispam),
		RatelimitJSON:      marshalSettings(c.Ratelimit),
	}
}

func fromConfigModel(m guildConfigModel) *domain.Config {
	cfg := domain.DefaultConfig(m.GuildID)
	cfg.Prefix = m.Prefix
	cfg.Currency = m.Currency
	cfg.LogChannelID = m.LogChannelID
	cfg.SuggestionsEnabled = m.SuggestionsEnabled
	cfg.ReactionResponse = m.ReactionResponse
	unmarshalSettings(m.LinkfilterJSON, &cfg.Linkfilter)
	unmarshalSettings(m.AntispamJSON, &cfg.Antispam)
	unmarshalSettings(m.RatelimitJSON, &cfg.Ratelimit)
	return cfg
}

func marshalSettings(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// unmarshalSettings leaves the default in place when the stored blob is empty
// or predates a settings field.
func unmarshalSettings(raw string, out interface{}) {
	if raw == "" {
		return
	}
	_ = json.Unmarshal([]byte(raw), out)
}
