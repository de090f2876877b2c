// Package ledger owns the account registry and the single active session. It
// enforces authentication, authorization and validation before any account is
// touched, and rewrites the registry after every mutation.
package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/simpleatm/atm/internal/account"
	"github.com/simpleatm/atm/internal/credential"
	"github.com/simpleatm/atm/internal/domain"
	"github.com/simpleatm/atm/internal/notification"
	"github.com/simpleatm/atm/internal/registry"
)

// DefaultCurrencySymbol prefixes amounts in rendered text.
const DefaultCurrencySymbol = "Rs"

// Ledger is the account registry plus the current session.
type Ledger struct {
	mu       sync.Mutex
	accounts map[string]*account.Account
	session  session

	store    registry.Store
	journal  account.Journal
	hasher   credential.Hasher
	notifier notification.Notifier
	logger   *slog.Logger
	currency string

	// decoy is verified against when the username is unknown, so a failed
	// login costs one bcrypt comparison either way.
	decoy string
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithHasher sets the password hasher.
func WithHasher(h credential.Hasher) Option {
	return func(l *Ledger) { l.hasher = h }
}

// WithNotifier sets the sink for account events.
func WithNotifier(n notification.Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithCurrencySymbol sets the symbol used when rendering amounts.
func WithCurrencySymbol(symbol string) Option {
	return func(l *Ledger) { l.currency = symbol }
}

// New loads the registry from store and returns a logged-out Ledger.
func New(ctx context.Context, store registry.Store, journal account.Journal, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		accounts: make(map[string]*account.Account),
		store:    store,
		journal:  journal,
		hasher:   credential.NewHasher(0),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		currency: DefaultCurrencySymbol,
	}
	for _, opt := range opts {
		opt(l)
	}

	records, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load registry: %v", domain.ErrStorage, err)
	}
	for _, rec := range records {
		if _, exists := l.accounts[rec.Username]; exists {
			return nil, fmt.Errorf("%w: duplicate username %q in registry", domain.ErrConflict, rec.Username)
		}
		acct, err := account.FromRecord(rec, journal)
		if err != nil {
			return nil, err
		}
		l.accounts[rec.Username] = acct
	}
	l.logger.Info("registry loaded", slog.Int("accounts", len(l.accounts)))
	return l, nil
}

// EnsureAdmin creates a privileged account when username is not yet
// registered. An existing account is left untouched.
func (l *Ledger) EnsureAdmin(ctx context.Context, username, password string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.accounts[username]; exists {
		return nil
	}
	if err := validateCredentials(username, password); err != nil {
		return err
	}
	hash, err := l.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	l.accounts[username] = account.New(username, hash, account.RoleAdmin, l.journal)
	l.logger.Info("admin account created", slog.String("username", username))
	return l.persist(ctx)
}

// HasAdmin reports whether any admin-role account is registered.
func (l *Ledger) HasAdmin() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, acct := range l.accounts {
		if acct.IsAdmin() {
			return true
		}
	}
	return false
}

// Len returns the number of registered accounts.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.accounts)
}

// persist rewrites the whole registry. Callers must hold l.mu.
func (l *Ledger) persist(ctx context.Context) error {
	if err := l.store.Save(ctx, l.records()); err != nil {
		l.logger.Error("registry save failed", slog.Any("error", err))
		return fmt.Errorf("%w: %w: save registry: %v", domain.ErrStorage, domain.ErrNotSaved, err)
	}
	return nil
}

func (l *Ledger) records() []account.Record {
	out := make([]account.Record, 0, len(l.accounts))
	for _, name := range l.usernames() {
		out = append(out, l.accounts[name].Record())
	}
	return out
}

func (l *Ledger) usernames() []string {
	names := make([]string, 0, len(l.accounts))
	for name := range l.accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Ledger) notify(ctx context.Context, msg notification.Message) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Send(ctx, msg); err != nil {
		l.logger.Warn("notification failed", slog.String("kind", msg.Kind), slog.Any("error", err))
	}
}

func validateCredentials(username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}
	return account.ValidateUsername(username)
}
