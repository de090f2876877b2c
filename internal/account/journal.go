package account

import "context"

// Journal persists per-account transaction logs. Implementations must make an
// appended entry durable before Append returns nil and must never rewrite or
// drop earlier entries.
type Journal interface {
	Append(ctx context.Context, username string, entry Entry) error
	Entries(ctx context.Context, username string) ([]Entry, error)
}
