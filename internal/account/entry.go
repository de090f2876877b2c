package account

import (
	"fmt"
	"strings"
	"time"

	"github.com/simpleatm/atm/internal/money"
)

// Kind names a posting type in the transaction log.
type Kind string

const (
	KindDeposit    Kind = "Deposit"
	KindWithdrawal Kind = "Withdrawal"
)

// EntryTimeLayout is the timestamp layout used in log lines.
const EntryTimeLayout = time.ANSIC

// Entry is one line of an account's transaction log. Amount is signed:
// negative for withdrawals.
type Entry struct {
	Time    time.Time
	Kind    Kind
	Amount  money.Amount
	Balance money.Amount
}

// String renders the entry as a log line, e.g.
// "[Mon Jan  2 15:04:05 2006] Deposit: +100.00 | Balance: 100.00".
func (e Entry) String() string {
	return fmt.Sprintf("[%s] %s: %s | Balance: %s", e.Time.Format(EntryTimeLayout), e.Kind, e.Amount.Signed(), e.Balance)
}

// ParseEntry is the inverse of Entry.String.
func ParseEntry(line string) (Entry, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "[") {
		return Entry{}, fmt.Errorf("malformed entry %q", line)
	}
	end := strings.Index(line, "] ")
	if end < 0 {
		return Entry{}, fmt.Errorf("malformed entry %q", line)
	}
	ts, err := time.ParseInLocation(EntryTimeLayout, line[1:end], time.Local)
	if err != nil {
		return Entry{}, fmt.Errorf("entry timestamp: %w", err)
	}

	kind, rest, ok := strings.Cut(line[end+2:], ": ")
	if !ok {
		return Entry{}, fmt.Errorf("malformed entry %q", line)
	}
	amountText, balanceText, ok := strings.Cut(rest, " | Balance: ")
	if !ok {
		return Entry{}, fmt.Errorf("malformed entry %q", line)
	}
	amount, err := money.Parse(strings.TrimPrefix(amountText, "+"))
	if err != nil {
		return Entry{}, err
	}
	balance, err := money.Parse(balanceText)
	if err != nil {
		return Entry{}, err
	}

	e := Entry{Time: ts, Kind: Kind(kind), Amount: amount, Balance: balance}
	if e.Kind != KindDeposit && e.Kind != KindWithdrawal {
		return Entry{}, fmt.Errorf("unknown entry kind %q", kind)
	}
	return e, nil
}
