package domain

import "errors"

var (
	// ErrInvalidInput covers empty credentials, non-positive amounts and amounts
	// that would overflow a balance.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound occurs when no account matches the requested username.
	ErrNotFound = errors.New("user not found")

	// ErrUnauthorized is returned when the session lacks the role an operation requires.
	ErrUnauthorized = errors.New("access denied")

	// ErrConflict is returned when registering a username that already exists.
	ErrConflict = errors.New("username already exists")

	// ErrInvalidCredentials is returned for unknown users, wrong passwords and
	// frozen accounts alike.
	ErrInvalidCredentials = errors.New("invalid username or password, or account is frozen")

	// ErrInsufficientFunds occurs when a withdrawal exceeds the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNotLoggedIn is returned by session operations while no one is logged in.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrStorage wraps failures of the registry store or a transaction journal.
	ErrStorage = errors.New("storage failure")

	// ErrNotSaved marks a storage failure that happened after the in-memory
	// change was applied. It is always wrapped together with ErrStorage.
	ErrNotSaved = errors.New("change applied but not saved")
)
