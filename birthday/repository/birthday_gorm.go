package repository

import (
	"context"
	"time"

	"github.com/happyfeetx/kiosk/birthday/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type birthdayModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	GuildID   string    `gorm:"column:guild_id;not null;index;uniqueIndex:idx_bday_guild_user_channel"`
	UserID    string    `gorm:"column:user_id;not null;uniqueIndex:idx_bday_guild_user_channel"`
	ChannelID string    `gorm:"column:channel_id;not null;uniqueIndex:idx_bday_guild_user_channel"`
	Month     int       `gorm:"column:month;not null;index:idx_bday_date"`
	Day       int       `gorm:"column:day;not null;index:idx_bday_date"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (birthdayModel) TableName() string { return "birthdays" }

type BirthdayGormRepository struct {
	db *gorm.DB
}

func NewBirthdayGormRepository(db *gorm.DB) *BirthdayGormRepository {
	return &BirthdayGormRepository{db: db}
}

func (r *BirthdayGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&birthdayModel{})
}

func (r *BirthdayGormRepository) Add(ctx context.Context, b domain.Birthday) error {
	m := birthdayModel{
		GuildID:   b.GuildID,
		UserID:    b.UserID,
		ChannelID: b.ChannelID,
		Month:     b.Month,
		Day:       b.Day,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}, {Name: "user_id"}, {Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"month", "day"}),
	}).Create(&m).Error
}

func (r *BirthdayGormRepository) Remove(ctx context.Context, guildID, userID string) error {
	return r.db.WithContext(ctx).
		Delete(&birthdayModel{}, "guild_id = ? AND user_id = ?", guildID, userID).Error
}

func (r *BirthdayGormRepository) ListGuild(ctx context.Context, guildID string) ([]domain.Birthday, error) {
	var models []birthdayModel
	if err := r.db.WithContext(ctx).Where("guild_id = ?", guildID).Find(&models).Error; err != nil {
		return nil, err
	}
	return fromModels(models), nil
}

func (r *BirthdayGormRepository) ListDue(ctx context.Context, date time.Time) ([]domain.Birthday, error) {
	var models []birthdayModel
	err := r.db.WithContext(ctx).
		Where("month = ? AND day = ?", int(date.Month()), date.Day()).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromModels(models), nil
}

func fromModels(models []birthdayModel) []domain.Birthday {
	out := make([]domain.Birthday, 0, len(models))
	for _, m := range models {
		out = append(out, domain.Birthday{
			GuildID:   m.GuildID,
			UserID:    m.UserID,
			ChannelID: m.ChannelID,
			Month:     m.Month,
			Day:       m.Day,
		})
	}
	return out
}
