package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/simpleatm/atm/internal/account"
	"github.com/simpleatm/atm/internal/domain"
	"github.com/simpleatm/atm/internal/money"
)

// NotLoggedIn is the text returned alongside ErrNotLoggedIn.
const NotLoggedIn = "Not logged in"

// Deposit credits the session's own account and returns the new balance.
func (l *Ledger) Deposit(ctx context.Context, amount money.Amount) (money.Amount, error) {
	return l.post(ctx, amount, (*account.Account).Deposit)
}

// Withdraw debits the session's own account and returns the new balance.
func (l *Ledger) Withdraw(ctx context.Context, amount money.Amount) (money.Amount, error) {
	return l.post(ctx, amount, (*account.Account).Withdraw)
}

type postFunc func(*account.Account, context.Context, money.Amount) error

func (l *Ledger) post(ctx context.Context, amount money.Amount, apply postFunc) (money.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.session.loggedIn() {
		return 0, domain.ErrNotLoggedIn
	}
	acct := l.session.current
	if err := apply(acct, ctx, amount); err != nil {
		return acct.Balance(), err
	}
	l.logger.Info("posting applied", slog.String("username", acct.Username()), slog.String("amount", amount.String()), slog.String("balance", acct.Balance().String()))
	return acct.Balance(), l.persist(ctx)
}

// Balance renders the session account's balance, e.g.
// "Current balance: Rs100.00".
func (l *Ledger) Balance() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.session.loggedIn() {
		return NotLoggedIn, domain.ErrNotLoggedIn
	}
	return fmt.Sprintf("Current balance: %s", l.format(l.session.current.Balance())), nil
}

// History renders the session account's transaction log.
func (l *Ledger) History(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.session.loggedIn() {
		return NotLoggedIn, domain.ErrNotLoggedIn
	}
	return l.session.current.History(ctx), nil
}

func (l *Ledger) format(a money.Amount) string {
	return l.currency + a.String()
}

// Format renders a in the ledger's currency, e.g. "Rs100.00".
func (l *Ledger) Format(a money.Amount) string {
	return l.format(a)
}
