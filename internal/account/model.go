package account

import (
	"fmt"
	"strings"

	"github.com/simpleatm/atm/internal/domain"
	"github.com/simpleatm/atm/internal/money"
)

// Role distinguishes privileged accounts from regular ones.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Record is the persisted form of an account as kept by a registry store.
type Record struct {
	Username string
	Password string
	Balance  money.Amount
	Frozen   bool
	Role     Role
}

// ValidateUsername rejects names that cannot be stored safely. Registry lines
// are whitespace delimited and file journals name a file after the user, so
// whitespace, path separators and the "." and ".." path elements are refused.
func ValidateUsername(username string) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	case strings.ContainsAny(username, " \t\r\n"):
		return fmt.Errorf("%w: username must not contain whitespace", domain.ErrInvalidInput)
	case strings.ContainsAny(username, "/\\"):
		return fmt.Errorf("%w: username must not contain path separators", domain.ErrInvalidInput)
	case username == "." || username == "..":
		return fmt.Errorf("%w: username %q is reserved", domain.ErrInvalidInput, username)
	}
	return nil
}
