package domain

import (
	"context"
	"errors"
	"time"
)

// ErrTaskNotFound is returned for lookups and deletes of ids with no row.
var ErrTaskNotFound = errors.New("task not found")

// ErrUnknownTaskKind marks a persisted row whose discriminator this build
// does not recognize. The row is kept in place so an operator can inspect it;
// the executor skips it for the rest of the run.
var ErrUnknownTaskKind = errors.New("unknown task kind")

// Repository is the persistence gateway for deferred tasks.
type Repository interface {
	Init(ctx context.Context) error

	// ListPending returns every decodable live task row. Rows with an
	// unrecognized discriminator are logged and left in place, never
	// returned; they are not armed and not deleted.
	ListPending(ctx context.Context) ([]*Task, error)
	Insert(ctx context.Context, t *Task) error
	UpdateExecuteAt(ctx context.Context, id string, executeAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// Session is the chat-platform boundary the executor fires effects through.
// Implementations must be safe for concurrent use by timer callbacks.
type Session interface {
	UnbanUser(ctx context.Context, guildID, userID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	SendMessage(ctx context.Context, channelID, content string) error
}
