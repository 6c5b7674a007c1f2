package domain

import "context"

// Account is a persisted currency balance keyed by (guild, user).
type Account struct {
	GuildID string `json:"guild_id"`
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// Repository exposes the optimistic read-modify-write pattern used for any
// store-backed counter. Each call is a single transactional unit of work;
// under a store without per-row write serialization callers must wrap these
// in a retry-on-conflict loop.
type Repository interface {
	Init(ctx context.Context) error

	// Balance returns the stored balance, zero for a missing account.
	Balance(ctx context.Context, guildID, userID string) (int64, error)

	// TryDecrease subtracts amount if the account exists and covers it.
	// Returns false, with no mutation, otherwise.
	TryDecrease(ctx context.Context, guildID, userID string, amount int64) (bool, error)

	// Modify applies fn to the current balance, creating a zero-balance
	// account when missing, and clamps the result at zero before writing.
	Modify(ctx context.Context, guildID, userID string, fn func(int64) int64) (int64, error)
}
