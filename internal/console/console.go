// Package console is a line-oriented terminal front end for the ledger. It
// parses commands, calls ledger operations and prints their results; all
// balance and permission rules stay in the ledger.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/simpleatm/atm/internal/account"
	"github.com/simpleatm/atm/internal/domain"
	"github.com/simpleatm/atm/internal/money"
)

// Ledger is the set of ledger operations the console drives.
type Ledger interface {
	Login(ctx context.Context, username, password string) (account.Role, error)
	Logout()
	Current() (string, account.Role, bool)
	Register(ctx context.Context, username, password string) error
	Deposit(ctx context.Context, amount money.Amount) (money.Amount, error)
	Withdraw(ctx context.Context, amount money.Amount) (money.Amount, error)
	Balance() (string, error)
	History(ctx context.Context) (string, error)
	ResetPassword(ctx context.Context, username, newPassword string) error
	ToggleFreeze(ctx context.Context, username string) (bool, error)
	IsFrozen(username string) (bool, error)
	AdminDeposit(ctx context.Context, username string, amount money.Amount) (money.Amount, error)
	AdminWithdraw(ctx context.Context, username string, amount money.Amount) (money.Amount, error)
	UserHistory(ctx context.Context, username string) (string, error)
	AllUsers() (string, error)
	Format(a money.Amount) string
}

const (
	missingCredentials = "Error: Please enter both username and password."
	invalidAmount      = "Error: Please enter a valid amount."
	saveFailed         = "Warning: the change was applied but could not be saved."
)

// Console reads commands from in and writes responses to out.
type Console struct {
	ledger Ledger
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
	prompt string
}

// New returns a Console bound to l.
func New(l Ledger, in io.Reader, out io.Writer, logger *slog.Logger) *Console {
	return &Console{ledger: l, in: in, out: out, logger: logger, prompt: "> "}
}

// SetPrompt changes the prompt printed before each command. An empty prompt
// disables it.
func (c *Console) SetPrompt(p string) { c.prompt = p }

// Run processes commands until input ends, "quit" is entered or ctx is
// cancelled.
func (c *Console) Run(ctx context.Context) error {
	c.println("Simple ATM. Type 'help' for a list of commands.")
	scanner := bufio.NewScanner(c.in)
	for {
		if c.prompt != "" {
			fmt.Fprint(c.out, c.prompt)
		}
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if !c.dispatch(ctx, strings.ToLower(fields[0]), fields[1:]) {
			c.println("Goodbye.")
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return ctx.Err()
}

// dispatch runs one command and reports whether the loop should continue.
func (c *Console) dispatch(ctx context.Context, cmd string, args []string) bool {
	switch cmd {
	case "quit", "exit":
		c.ledger.Logout()
		return false
	case "help":
		c.help()
	case "login":
		c.login(ctx, args)
	case "logout":
		c.ledger.Logout()
		c.println("Logged out.")
	case "register":
		c.register(ctx, args)
	case "deposit":
		c.deposit(ctx, args)
	case "withdraw":
		c.withdraw(ctx, args)
	case "balance":
		c.balance()
	case "history":
		text, _ := c.ledger.History(ctx)
		c.println(strings.TrimRight(text, "\n"))
	case "reset":
		c.resetPassword(ctx, args)
	case "freeze":
		c.toggleFreeze(ctx, args)
	case "status":
		c.status(args)
	case "credit":
		c.adminDeposit(ctx, args)
	case "debit":
		c.adminWithdraw(ctx, args)
	case "transactions":
		c.userHistory(ctx, args)
	case "users":
		text, _ := c.ledger.AllUsers()
		c.println(strings.TrimRight(text, "\n"))
	default:
		c.printf("Unknown command %q. Type 'help' for a list of commands.\n", cmd)
	}
	return true
}

func (c *Console) help() {
	c.println(`Commands:
  login <username> <password>
  register <username> <password>
  logout
  deposit <amount>
  withdraw <amount>
  balance
  history
  quit
Admin commands:
  reset <username> <new-password>
  freeze <username>            toggle the frozen flag
  status <username>
  credit <username> <amount>
  debit <username> <amount>
  transactions <username>
  users`)
}

func (c *Console) login(ctx context.Context, args []string) {
	if len(args) < 2 {
		c.println(missingCredentials)
		return
	}
	role, err := c.ledger.Login(ctx, args[0], args[1])
	if err != nil {
		c.println("Error: Invalid username or password, or account is frozen.")
		return
	}
	c.printf("Welcome, %s!\n", args[0])
	if role == account.RoleAdmin {
		c.println("Admin commands are available.")
	}
}

func (c *Console) register(ctx context.Context, args []string) {
	if len(args) < 2 {
		c.println(missingCredentials)
		return
	}
	err := c.ledger.Register(ctx, args[0], args[1])
	switch {
	case err == nil:
		c.println("Registration successful! Please login with your new account.")
	case errors.Is(err, domain.ErrConflict):
		c.println("Error: Username already exists.")
	case c.savedAnyway(err):
		c.println("Registration successful! Please login with your new account.")
		c.println(saveFailed)
	default:
		c.println("Error: Invalid username or password.")
	}
}

func (c *Console) deposit(ctx context.Context, args []string) {
	amount, ok := c.amount(args, 0)
	if !ok {
		return
	}
	balance, err := c.ledger.Deposit(ctx, amount)
	c.posted(err, "Deposit successful!", "Error: Deposit failed. Please try again.", balance)
}

func (c *Console) withdraw(ctx context.Context, args []string) {
	amount, ok := c.amount(args, 0)
	if !ok {
		return
	}
	balance, err := c.ledger.Withdraw(ctx, amount)
	c.posted(err, "Withdrawal successful!", "Error: Withdrawal failed. Insufficient funds or invalid amount.", balance)
}

func (c *Console) posted(err error, ok, failed string, balance money.Amount) {
	switch {
	case errors.Is(err, domain.ErrNotLoggedIn):
		c.println("Not logged in")
		return
	case err != nil && !c.savedAnyway(err):
		c.println(failed)
		return
	}
	c.println(ok)
	c.printf("New Balance: %s\n", c.ledger.Format(balance))
	if err != nil {
		c.println(saveFailed)
	}
}

func (c *Console) balance() {
	text, err := c.ledger.Balance()
	if err != nil {
		c.println(text)
		return
	}
	username, _, _ := c.ledger.Current()
	c.printf("Account Balance\n----------------\nUsername: %s\n%s\n", username, text)
}

func (c *Console) resetPassword(ctx context.Context, args []string) {
	if len(args) < 2 {
		c.println("Usage: reset <username> <new-password>")
		return
	}
	err := c.ledger.ResetPassword(ctx, args[0], args[1])
	if err != nil && !c.savedAnyway(err) {
		c.println("Error: Failed to reset password. User may not exist or insufficient permissions.")
		return
	}
	c.printf("Password for %s has been reset.\n", args[0])
	if err != nil {
		c.println(saveFailed)
	}
}

func (c *Console) toggleFreeze(ctx context.Context, args []string) {
	if len(args) < 1 {
		c.println("Usage: freeze <username>")
		return
	}
	frozen, err := c.ledger.ToggleFreeze(ctx, args[0])
	if err != nil && !c.savedAnyway(err) {
		c.println("Error: Failed to toggle account status. User may not exist or insufficient permissions.")
		return
	}
	c.printf("Account %s has been %s.\n", args[0], frozenWord(frozen))
	if err != nil {
		c.println(saveFailed)
	}
}

func (c *Console) status(args []string) {
	if len(args) < 1 {
		c.println("Usage: status <username>")
		return
	}
	frozen, err := c.ledger.IsFrozen(args[0])
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		c.println("Access denied")
	case errors.Is(err, domain.ErrNotFound):
		c.println("User not found")
	default:
		c.printf("Account %s is %s.\n", args[0], frozenWord(frozen))
	}
}

func (c *Console) adminDeposit(ctx context.Context, args []string) {
	if len(args) < 2 {
		c.println("Usage: credit <username> <amount>")
		return
	}
	amount, ok := c.amount(args, 1)
	if !ok {
		return
	}
	_, err := c.ledger.AdminDeposit(ctx, args[0], amount)
	if err != nil && !c.savedAnyway(err) {
		c.println("Error: Deposit failed. User may not exist or insufficient permissions.")
		return
	}
	c.printf("Deposited %s to %s\n", c.ledger.Format(amount), args[0])
	if err != nil {
		c.println(saveFailed)
	}
}

func (c *Console) adminWithdraw(ctx context.Context, args []string) {
	if len(args) < 2 {
		c.println("Usage: debit <username> <amount>")
		return
	}
	amount, ok := c.amount(args, 1)
	if !ok {
		return
	}
	_, err := c.ledger.AdminWithdraw(ctx, args[0], amount)
	if err != nil && !c.savedAnyway(err) {
		c.println("Error: Withdrawal failed. Insufficient funds or invalid user/permissions.")
		return
	}
	c.printf("Withdrawn %s from %s\n", c.ledger.Format(amount), args[0])
	if err != nil {
		c.println(saveFailed)
	}
}

func (c *Console) userHistory(ctx context.Context, args []string) {
	if len(args) < 1 {
		c.println("Usage: transactions <username>")
		return
	}
	text, err := c.ledger.UserHistory(ctx, args[0])
	if err != nil {
		c.println(text)
		return
	}
	c.printf("Transactions for %s:\n%s\n", args[0], strings.TrimRight(text, "\n"))
}

// amount parses args[i]. Missing, malformed and non-positive values are all
// reported the same way.
func (c *Console) amount(args []string, i int) (money.Amount, bool) {
	if len(args) <= i {
		c.println(invalidAmount)
		return 0, false
	}
	amount, err := money.Parse(args[i])
	if err != nil || amount <= 0 {
		c.println(invalidAmount)
		return 0, false
	}
	return amount, true
}

// savedAnyway reports whether err only means the registry could not be
// rewritten after the change took effect. Storage failures are logged.
func (c *Console) savedAnyway(err error) bool {
	if !errors.Is(err, domain.ErrStorage) {
		return false
	}
	c.logger.Error("storage failure", slog.Any("error", err))
	return errors.Is(err, domain.ErrNotSaved)
}

func frozenWord(frozen bool) string {
	if frozen {
		return "frozen"
	}
	return "unfrozen"
}

func (c *Console) println(s string) { fmt.Fprintln(c.out, s) }

func (c *Console) printf(format string, args ...any) { fmt.Fprintf(c.out, format, args...) }
