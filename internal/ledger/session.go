package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/simpleatm/atm/internal/account"
	"github.com/simpleatm/atm/internal/credential"
	"github.com/simpleatm/atm/internal/domain"
	"github.com/simpleatm/atm/internal/notification"
)

// session is the currently authenticated account, if any. The role is read
// from the account, never inferred from its name.
type session struct {
	current *account.Account
}

func (s session) loggedIn() bool { return s.current != nil }

func (s session) admin() bool { return s.current != nil && s.current.IsAdmin() }

// Login authenticates username/password. Any existing session is ended
// first, so a failed attempt always leaves the ledger logged out. Unknown
// users, wrong passwords and frozen accounts all yield ErrInvalidCredentials.
func (l *Ledger) Login(ctx context.Context, username, password string) (account.Role, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.session = session{}

	acct, ok := l.accounts[username]
	if !ok {
		l.verifyDecoy(password)
		l.logger.Warn("login rejected", slog.String("username", username))
		return "", domain.ErrInvalidCredentials
	}
	if !acct.Authenticate(password) {
		l.logger.Warn("login rejected", slog.String("username", username))
		return "", domain.ErrInvalidCredentials
	}
	if acct.Frozen() {
		l.logger.Warn("login rejected", slog.String("username", username), slog.Bool("frozen", true))
		return "", domain.ErrInvalidCredentials
	}

	if acct.NeedsRehash() {
		if hash, err := l.hasher.Hash(password); err == nil {
			acct.SetPassword(hash)
			if err := l.persist(ctx); err != nil {
				l.logger.Warn("password upgrade not persisted", slog.String("username", username), slog.Any("error", err))
			}
		}
	}

	l.session = session{current: acct}
	l.logger.Info("login", slog.String("username", username), slog.String("role", string(acct.Role())))
	return acct.Role(), nil
}

// verifyDecoy spends the same bcrypt work as a real password check. Callers
// must hold l.mu.
func (l *Ledger) verifyDecoy(password string) {
	if l.decoy == "" {
		hash, err := l.hasher.Hash("decoy password")
		if err != nil {
			l.logger.Warn("decoy hash failed", slog.Any("error", err))
			return
		}
		l.decoy = hash
	}
	credential.Verify(l.decoy, password)
}

// Logout ends the current session. It always succeeds.
func (l *Ledger) Logout() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session.loggedIn() {
		l.logger.Info("logout", slog.String("username", l.session.current.Username()))
	}
	l.session = session{}
}

// Current returns the logged-in username and role.
func (l *Ledger) Current() (string, account.Role, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.session.loggedIn() {
		return "", "", false
	}
	return l.session.current.Username(), l.session.current.Role(), true
}

// Register creates a regular account with a zero balance. No session is
// required. Usernames are matched exactly, so "admin" is taken once the
// privileged account exists.
func (l *Ledger) Register(ctx context.Context, username, password string) error {
	if err := validateCredentials(username, password); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.accounts[username]; exists {
		return domain.ErrConflict
	}
	hash, err := l.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	l.accounts[username] = account.New(username, hash, account.RoleUser, l.journal)
	l.notify(ctx, notification.Message{Kind: notification.KindRegistered, Actor: username, Destination: username, Body: "account registered"})
	return l.persist(ctx)
}
