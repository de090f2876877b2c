// Package registry persists the full set of account records. Every Save
// replaces the previous contents.
package registry

import (
	"context"

	"github.com/simpleatm/atm/internal/account"
)

// Store loads and rewrites the account registry.
type Store interface {
	Load(ctx context.Context) ([]account.Record, error)
	Save(ctx context.Context, records []account.Record) error
}
