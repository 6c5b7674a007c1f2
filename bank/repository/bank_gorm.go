package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type accountModel struct {
	GuildID   string    `gorm:"primaryKey;column:guild_id"`
	UserID    string    `gorm:"primaryKey;column:user_id"`
	Balance   int64     `gorm:"column:balance;default:0"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (accountModel) TableName() string { return "bank_accounts" }

type BankGormRepository struct {
	db *gorm.DB
}

func NewBankGormRepository(db *gorm.DB) *BankGormRepository {
	return &BankGormRepository{db: db}
}

func (r *BankGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&accountModel{})
}

// lockForUpdate takes a row lock on dialects that support SELECT FOR UPDATE,
// so two transactions mutating the same account serialize on the read.
// SQLite has no such clause; its single-writer pool serializes anyway.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (r *BankGormRepository) Balance(ctx context.Context, guildID, userID string) (int64, error) {
	var m accountModel
	err := r.db.WithContext(ctx).
		First(&m, "guild_id = ? AND user_id = ?", guildID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return m.Balance, nil
}

func (r *BankGormRepository) TryDecrease(ctx context.Context, guildID, userID string, amount int64) (bool, error) {
	ok := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m accountModel
		err := lockForUpdate(tx).First(&m, "guild_id = ? AND user_id = ?", guildID, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if m.Balance < amount {
			return nil
		}
		m.Balance -= amount
		if err := tx.Save(&m).Error; err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *BankGormRepository) Modify(ctx context.Context, guildID, userID string, fn func(int64) int64) (int64, error) {
	var result int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := accountModel{GuildID: guildID, UserID: userID}
		err := lockForUpdate(tx).First(&m, "guild_id = ? AND user_id = ?", guildID, userID).Error
		created := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !created {
			return err
		}

		m.Balance = fn(m.Balance)
		if m.Balance < 0 {
			m.Balance = 0
		}

		if created {
			err = tx.Create(&m).Error
		} else {
			err = tx.Save(&m).Error
		}
		if err != nil {
			return err
		}
		result = m.Balance
		return nil
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}
