package registry

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/simpleatm/atm/internal/account"
	"github.com/simpleatm/atm/internal/money"
)

// Schema creates the table used by PostgresStore.
const Schema = `CREATE TABLE IF NOT EXISTS accounts (
    username TEXT PRIMARY KEY,
    password TEXT NOT NULL,
    balance  BIGINT NOT NULL CHECK (balance >= 0),
    frozen   BOOLEAN NOT NULL DEFAULT FALSE,
    role     TEXT NOT NULL DEFAULT 'user'
);`

// PostgresStore keeps the registry in the accounts table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed registry store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate ensures the accounts table exists.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	return err
}

// Load reads every account row.
func (s *PostgresStore) Load(ctx context.Context) ([]account.Record, error) {
	rows, err := s.db.Query(ctx, `SELECT username, password, balance, frozen, role FROM accounts ORDER BY username`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (account.Record, error) {
		var (
			rec     account.Record
			balance int64
			role    string
		)
		if err := row.Scan(&rec.Username, &rec.Password, &balance, &rec.Frozen, &role); err != nil {
			return account.Record{}, err
		}
		rec.Balance = money.Amount(balance)
		rec.Role = account.Role(role)
		return rec, nil
	})
}

// Save replaces the table contents inside a single transaction, so readers
// never observe a partial registry.
func (s *PostgresStore) Save(ctx context.Context, records []account.Record) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM accounts`); err != nil {
		return err
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []any{rec.Username, rec.Password, int64(rec.Balance), rec.Frozen, string(rec.Role)})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"accounts"},
		[]string{"username", "password", "balance", "frozen", "role"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
