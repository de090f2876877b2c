package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/simpleatm/atm/internal/account"
	"github.com/simpleatm/atm/internal/money"
)

// Schema creates the table used by Postgres.
const Schema = `CREATE TABLE IF NOT EXISTS account_transactions (
    id          UUID PRIMARY KEY,
    seq         BIGSERIAL NOT NULL,
    username    TEXT NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL,
    kind        TEXT NOT NULL,
    amount      BIGINT NOT NULL,
    balance     BIGINT NOT NULL CHECK (balance >= 0)
);
CREATE INDEX IF NOT EXISTS account_transactions_username_idx
    ON account_transactions (username, seq);`

// Postgres persists transaction logs in PostgreSQL.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres builds a Postgres-backed journal.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Migrate ensures the journal table exists.
func (j *Postgres) Migrate(ctx context.Context) error {
	_, err := j.db.Exec(ctx, Schema)
	return err
}

// Append inserts a single entry row.
func (j *Postgres) Append(ctx context.Context, username string, entry account.Entry) error {
	_, err := j.db.Exec(ctx, `INSERT INTO account_transactions (id, username, occurred_at, kind, amount, balance)
        VALUES ($1, $2, $3, $4, $5, $6)`, uuid.New(), username, entry.Time.UTC(), string(entry.Kind), int64(entry.Amount), int64(entry.Balance))
	return err
}

// Entries returns the account's rows in posting order.
func (j *Postgres) Entries(ctx context.Context, username string) ([]account.Entry, error) {
	rows, err := j.db.Query(ctx, `SELECT occurred_at, kind, amount, balance FROM account_transactions
        WHERE username = $1 ORDER BY seq`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []account.Entry
	for rows.Next() {
		var (
			at      time.Time
			kind    string
			amount  int64
			balance int64
		)
		if err := rows.Scan(&at, &kind, &amount, &balance); err != nil {
			return nil, err
		}
		out = append(out, account.Entry{Time: at.Local(), Kind: account.Kind(kind), Amount: money.Amount(amount), Balance: money.Amount(balance)})
	}
	return out, rows.Err()
}
