// Package account models a single ledger account: credentials, balance,
// frozen flag, role and its append-only transaction log.
package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/simpleatm/atm/internal/credential"
	"github.com/simpleatm/atm/internal/domain"
	"github.com/simpleatm/atm/internal/money"
)

// NoTransactions is returned by History when there is nothing to show.
const NoTransactions = "No transactions found."

// Account holds one user's state. It is owned by the ledger and is not safe
// for concurrent use on its own.
type Account struct {
	username string
	password string
	balance  money.Amount
	frozen   bool
	role     Role

	journal Journal
	now     func() time.Time
}

// New creates an empty account. password must already be hashed.
func New(username, password string, role Role, journal Journal) *Account {
	return &Account{
		username: username,
		password: password,
		role:     role,
		journal:  journal,
		now:      time.Now,
	}
}

// FromRecord rebuilds an account loaded from a registry store.
func FromRecord(rec Record, journal Journal) (*Account, error) {
	if err := ValidateUsername(rec.Username); err != nil {
		return nil, err
	}
	if rec.Balance < 0 {
		return nil, fmt.Errorf("%w: negative balance for %s", domain.ErrInvalidInput, rec.Username)
	}
	role := rec.Role
	if !role.Valid() {
		role = RoleUser
	}
	a := New(rec.Username, rec.Password, role, journal)
	a.balance = rec.Balance
	a.frozen = rec.Frozen
	return a, nil
}

// Record returns the persisted form of the account.
func (a *Account) Record() Record {
	return Record{
		Username: a.username,
		Password: a.password,
		Balance:  a.balance,
		Frozen:   a.frozen,
		Role:     a.role,
	}
}

func (a *Account) Username() string      { return a.username }
func (a *Account) Balance() money.Amount { return a.balance }
func (a *Account) Frozen() bool          { return a.frozen }
func (a *Account) Role() Role            { return a.role }
func (a *Account) IsAdmin() bool         { return a.role == RoleAdmin }

// Authenticate reports whether password matches the stored secret.
func (a *Account) Authenticate(password string) bool {
	return credential.Verify(a.password, password)
}

// NeedsRehash reports whether the stored secret is a legacy plaintext value.
func (a *Account) NeedsRehash() bool {
	return !credential.IsHash(a.password)
}

// SetPassword replaces the stored secret. hash must already be hashed.
func (a *Account) SetPassword(hash string) {
	a.password = hash
}

// ToggleFrozen flips the frozen flag and returns the new value.
func (a *Account) ToggleFrozen() bool {
	a.frozen = !a.frozen
	return a.frozen
}

// Deposit credits amount and records a Deposit entry.
func (a *Account) Deposit(ctx context.Context, amount money.Amount) error {
	if amount <= 0 {
		return fmt.Errorf("%w: deposit amount must be positive", domain.ErrInvalidInput)
	}
	next, err := a.balance.Add(amount)
	if err != nil {
		return err
	}
	return a.post(ctx, KindDeposit, amount, next)
}

// Withdraw debits amount and records a Withdrawal entry. The balance never
// goes below zero.
func (a *Account) Withdraw(ctx context.Context, amount money.Amount) error {
	if amount <= 0 {
		return fmt.Errorf("%w: withdrawal amount must be positive", domain.ErrInvalidInput)
	}
	if amount > a.balance {
		return domain.ErrInsufficientFunds
	}
	return a.post(ctx, KindWithdrawal, -amount, a.balance-amount)
}

// post writes the journal entry first; the balance only moves once the entry
// is durable.
func (a *Account) post(ctx context.Context, kind Kind, signed, next money.Amount) error {
	entry := Entry{Time: a.now(), Kind: kind, Amount: signed, Balance: next}
	if a.journal != nil {
		if err := a.journal.Append(ctx, a.username, entry); err != nil {
			return fmt.Errorf("%w: append %s entry for %s: %v", domain.ErrStorage, kind, a.username, err)
		}
	}
	a.balance = next
	return nil
}

// Entries returns the raw transaction log.
func (a *Account) Entries(ctx context.Context) ([]Entry, error) {
	if a.journal == nil {
		return nil, nil
	}
	return a.journal.Entries(ctx, a.username)
}

// History renders the transaction log one entry per line, or NoTransactions
// when the log is empty or cannot be read.
func (a *Account) History(ctx context.Context) string {
	entries, err := a.Entries(ctx)
	if err != nil || len(entries) == 0 {
		return NoTransactions
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}
