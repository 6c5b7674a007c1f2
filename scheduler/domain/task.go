package domain

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates persisted task rows.
type Kind string

const (
	KindUnban       Kind = "unban"
	KindUnmute      Kind = "unmute"
	KindSendMessage Kind = "send_message"
)

// Payload carries the per-variant data of a task. The set of implementations
// is closed: adding a task kind means adding a payload type here, a decode
// case in the repository and a handler case in the executor.
type Payload interface {
	Kind() Kind
}

// UnbanPayload lifts a ban from the target user when the task fires.
type UnbanPayload struct{}

func (UnbanPayload) Kind() Kind { return KindUnban }

// UnmutePayload removes a role (typically the mute role) from the target
// user when the task fires.
type UnmutePayload struct {
	RoleID string `json:"role_id"`
}

func (UnmutePayload) Kind() Kind { return KindUnmute }

// SendMessagePayload delivers a message (a reminder) to a channel when the
// task fires. Repeating reminders recompute their next run instead of being
// deleted.
type SendMessagePayload struct {
	ChannelID string        `json:"channel_id"`
	Message   string        `json:"message"`
	Repeating bool          `json:"repeating"`
	Interval  time.Duration `json:"interval"`
}

func (SendMessagePayload) Kind() Kind { return KindSendMessage }

// Task is one persisted deferred action. Its identity is the persisted ID,
// stable across restarts; exactly one row exists per live task.
type Task struct {
	ID        string
	GuildID   string
	UserID    string
	ExecuteAt time.Time
	Payload   Payload
}

// NewTask assigns a fresh id and normalizes the execution time to UTC.
func NewTask(guildID, userID string, executeAt time.Time, payload Payload) *Task {
	return &Task{
		ID:        uuid.NewString(),
		GuildID:   guildID,
		UserID:    userID,
		ExecuteAt: executeAt.UTC(),
		Payload:   payload,
	}
}

// Repeating reports whether the task reschedules itself after firing.
func (t *Task) Repeating() bool {
	p, ok := t.Payload.(SendMessagePayload)
	return ok && p.Repeating && p.Interval > 0
}

// Due reports whether the task's execution time has already passed.
func (t *Task) Due(now time.Time) bool {
	return !t.ExecuteAt.After(now)
}

// NextOccurrence returns the first scheduled time strictly after now. A task
// that slept through several intervals advances past all of them in one step
// rather than firing once per missed interval.
func (t *Task) NextOccurrence(now time.Time) time.Time {
	p, ok := t.Payload.(SendMessagePayload)
	if !ok || p.Interval <= 0 {
		return t.ExecuteAt
	}
	next := t.ExecuteAt
	if !next.After(now) {
		steps := int64(now.Sub(next)/p.Interval) + 1
		next = next.Add(time.Duration(steps) * p.Interval)
	}
	return next
}
