package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/simpleatm/atm/internal/account"
	"github.com/simpleatm/atm/internal/domain"
	"github.com/simpleatm/atm/internal/money"
	"github.com/simpleatm/atm/internal/notification"
)

const (
	// AccessDenied is the text returned alongside ErrUnauthorized.
	AccessDenied = "Access denied"
	// UserNotFound is the text returned alongside ErrNotFound.
	UserNotFound = "User not found"
)

// target resolves username for an admin operation. Callers must hold l.mu.
func (l *Ledger) target(username string) (*account.Account, error) {
	if !l.session.admin() {
		return nil, domain.ErrUnauthorized
	}
	acct, ok := l.accounts[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return acct, nil
}

func (l *Ledger) actor() string {
	if l.session.loggedIn() {
		return l.session.current.Username()
	}
	return ""
}

// ResetPassword sets a new password on any account.
func (l *Ledger) ResetPassword(ctx context.Context, username, newPassword string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, err := l.target(username)
	if err != nil {
		return err
	}
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", domain.ErrInvalidInput)
	}
	hash, err := l.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	acct.SetPassword(hash)
	l.notify(ctx, notification.Message{Kind: notification.KindPasswordReset, Actor: l.actor(), Destination: username, Body: "password reset"})
	return l.persist(ctx)
}

// ToggleFreeze flips the frozen flag on any account and returns the new value.
func (l *Ledger) ToggleFreeze(ctx context.Context, username string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, err := l.target(username)
	if err != nil {
		return false, err
	}
	frozen := acct.ToggleFrozen()
	kind, body := notification.KindAccountUnfrozen, "account unfrozen"
	if frozen {
		kind, body = notification.KindAccountFrozen, "account frozen"
	}
	l.notify(ctx, notification.Message{Kind: kind, Actor: l.actor(), Destination: username, Body: body})
	return frozen, l.persist(ctx)
}

// IsFrozen reports the frozen flag of any account.
func (l *Ledger) IsFrozen(username string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, err := l.target(username)
	if err != nil {
		return false, err
	}
	return acct.Frozen(), nil
}

// AdminDeposit credits any account and returns its new balance.
func (l *Ledger) AdminDeposit(ctx context.Context, username string, amount money.Amount) (money.Amount, error) {
	return l.adminPost(ctx, username, amount, notification.KindAdminDeposit, (*account.Account).Deposit)
}

// AdminWithdraw debits any account and returns its new balance.
func (l *Ledger) AdminWithdraw(ctx context.Context, username string, amount money.Amount) (money.Amount, error) {
	return l.adminPost(ctx, username, amount, notification.KindAdminWithdrawal, (*account.Account).Withdraw)
}

func (l *Ledger) adminPost(ctx context.Context, username string, amount money.Amount, kind string, apply postFunc) (money.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, err := l.target(username)
	if err != nil {
		return 0, err
	}
	if err := apply(acct, ctx, amount); err != nil {
		return acct.Balance(), err
	}
	l.logger.Info("admin posting applied", slog.String("actor", l.actor()), slog.String("username", username), slog.String("amount", amount.String()))
	l.notify(ctx, notification.Message{Kind: kind, Actor: l.actor(), Destination: username, Body: l.format(amount)})
	return acct.Balance(), l.persist(ctx)
}

// UserHistory renders any account's transaction log.
func (l *Ledger) UserHistory(ctx context.Context, username string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, err := l.target(username)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return AccessDenied, err
	case errors.Is(err, domain.ErrNotFound):
		return UserNotFound, err
	}
	return acct.History(ctx), nil
}

// AllUsers lists every non-admin account with its balance, marking frozen
// accounts.
func (l *Ledger) AllUsers() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.session.admin() {
		return AccessDenied, domain.ErrUnauthorized
	}
	var b strings.Builder
	b.WriteString("All Users:\n-----------\n")
	for _, name := range l.usernames() {
		acct := l.accounts[name]
		if acct.IsAdmin() {
			continue
		}
		fmt.Fprintf(&b, "User: %s | Balance: %s", name, l.format(acct.Balance()))
		if acct.Frozen() {
			b.WriteString(" (FROZEN)")
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}
