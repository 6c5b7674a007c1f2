package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/happyfeetx/kiosk/scheduler/domain"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// taskModel is the single-table persisted form of a task: discriminator plus
// generic columns, unused ones left at their zero value per kind.
type taskModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	Kind      string    `gorm:"column:kind;not null;index"`
	GuildID   string    `gorm:"column:guild_id;not null;index"`
	UserID    string    `gorm:"column:user_id;not null"`
	ExecuteAt time.Time `gorm:"column:execute_at;not null;index"`

	RoleID    string `gorm:"column:role_id"`
	ChannelID string `gorm:"column:channel_id"`
	Message   string `gorm:"column:message;type:text"`
	Repeating bool   `gorm:"column:repeating;default:false"`
	Interval  int64  `gorm:"column:interval_ns;default:0"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (taskModel) TableName() string { return "tasks" }

type TaskGormRepository struct {
	db *gorm.DB
}

func NewTaskGormRepository(db *gorm.DB) *TaskGormRepository {
	return &TaskGormRepository{db: db}
}

func (r *TaskGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&taskModel{})
}

func (r *TaskGormRepository) ListPending(ctx context.Context) ([]*domain.Task, error) {
	var models []taskModel
	if err := r.db.WithContext(ctx).Order("execute_at asc").Find(&models).Error; err != nil {
		return nil, err
	}

	tasks := make([]*domain.Task, 0, len(models))
	for _, m := range models {
		t, err := fromTaskModel(m)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"task_id": m.ID,
				"kind":    m.Kind,
			}).WithError(err).Warn("skipping undecodable task row")
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (r *TaskGormRepository) Insert(ctx context.Context, t *domain.Task) error {
	m := toTaskModel(t)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *TaskGormRepository) UpdateExecuteAt(ctx context.Context, id string, executeAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&taskModel{}).
		Where("id = ?", id).
		Update("execute_at", executeAt.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *TaskGormRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&taskModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// --- Converters ---

func toTaskModel(t *domain.Task) taskModel {
	m := taskModel{
		ID:        t.ID,
		Kind:      string(t.Payload.Kind()),
		GuildID:   t.GuildID,
		UserID:    t.UserID,
		ExecuteAt: t.ExecuteAt.UTC(),
	}
	switch p := t.Payload.(type) {
	case domain.UnmutePayload:
		m.RoleID = p.RoleID
	case domain.SendMessagePayload:
		m.ChannelID = p.ChannelID
		m.Message = p.Message
		m.Repeating = p.Repeating
		m.Interval = int64(p.Interval)
	}
	return m
}

func fromTaskModel(m taskModel) (*domain.Task, error) {
	var payload domain.Payload
	switch domain.Kind(m.Kind) {
	case domain.KindUnban:
		payload = domain.UnbanPayload{}
	case domain.KindUnmute:
		payload = domain.UnmutePayload{RoleID: m.RoleID}
	case domain.KindSendMessage:
		payload = domain.SendMessagePayload{
			ChannelID: m.ChannelID,
			Message:   m.Message,
			Repeating: m.Repeating,
			Interval:  time.Duration(m.Interval),
		}
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTaskKind, m.Kind)
	}

	return &domain.Task{
		ID:        m.ID,
		GuildID:   m.GuildID,
		UserID:    m.UserID,
		ExecuteAt: m.ExecuteAt.UTC(),
		Payload:   payload,
	}, nil
}
