package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/simpleatm/atm/internal/account"
	"github.com/simpleatm/atm/internal/credential"
	"github.com/simpleatm/atm/internal/domain"
	"github.com/simpleatm/atm/internal/journal"
	"github.com/simpleatm/atm/internal/money"
	"github.com/simpleatm/atm/internal/notification"
	"github.com/simpleatm/atm/internal/registry"
)

type testNotifier struct {
	sent []notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.sent = append(n.sent, msg)
	return nil
}

func newTestLedger(t *testing.T, store registry.Store) (*Ledger, account.Journal, *testNotifier) {
	t.Helper()
	j := journal.NewMemory()
	n := &testNotifier{}
	l, err := New(context.Background(), store, j, WithHasher(credential.NewHasher(bcrypt.MinCost)), WithNotifier(n))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if err := l.EnsureAdmin(context.Background(), "admin", "adminpw"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	return l, j, n
}

func mustRegisterAndLogin(t *testing.T, l *Ledger, username, password string) {
	t.Helper()
	ctx := context.Background()
	if err := l.Register(ctx, username, password); err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	if _, err := l.Login(ctx, username, password); err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
}

func TestUserScenario(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t, registry.NewMemory())
	mustRegisterAndLogin(t, l, "alice", "pw1")

	if _, err := l.Deposit(ctx, money.FromMajor(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got, _ := l.Balance(); got != "Current balance: Rs100.00" {
		t.Fatalf("unexpected balance text %q", got)
	}
	if _, err := l.Withdraw(ctx, money.FromMajor(150)); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got, _ := l.Balance(); got != "Current balance: Rs100.00" {
		t.Fatalf("balance changed after failed withdrawal: %q", got)
	}
	bal, err := l.Withdraw(ctx, money.FromMajor(40))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if bal != money.FromMajor(60) {
		t.Fatalf("expected 60.00, got %s", bal)
	}

	history, err := l.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if strings.Count(history, "\n") != 2 || !strings.Contains(history, "Withdrawal: -40.00 | Balance: 60.00") {
		t.Fatalf("unexpected history:\n%s", history)
	}
}

func TestFreezeScenario(t *testing.T) {
	ctx := context.Background()
	l, _, n := newTestLedger(t, registry.NewMemory())
	if err := l.Register(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	role, err := l.Login(ctx, "admin", "adminpw")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if role != account.RoleAdmin {
		t.Fatalf("expected admin role, got %s", role)
	}
	frozen, err := l.ToggleFreeze(ctx, "alice")
	if err != nil || !frozen {
		t.Fatalf("freeze: frozen=%v err=%v", frozen, err)
	}
	if _, err := l.Login(ctx, "alice", "pw1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected frozen login to fail, got %v", err)
	}

	if _, err := l.Login(ctx, "admin", "adminpw"); err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if frozen, err := l.ToggleFreeze(ctx, "alice"); err != nil || frozen {
		t.Fatalf("unfreeze: frozen=%v err=%v", frozen, err)
	}
	if _, err := l.Login(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("expected unfrozen login to succeed, got %v", err)
	}

	var kinds []string
	for _, m := range n.sent {
		kinds = append(kinds, m.Kind)
	}
	want := []string{notification.KindRegistered, notification.KindAccountFrozen, notification.KindAccountUnfrozen}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("expected events %v, got %v", want, kinds)
	}
}

func TestFrozenLoginIsIndistinguishable(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t, registry.NewMemory())
	_ = l.Register(ctx, "alice", "pw1")
	_, _ = l.Login(ctx, "admin", "adminpw")
	_, _ = l.ToggleFreeze(ctx, "alice")

	_, frozenErr := l.Login(ctx, "alice", "pw1")
	_, wrongErr := l.Login(ctx, "alice", "nope")
	_, unknownErr := l.Login(ctx, "ghost", "pw1")
	if frozenErr != wrongErr || wrongErr != unknownErr {
		t.Fatalf("errors differ: frozen=%v wrong=%v unknown=%v", frozenErr, wrongErr, unknownErr)
	}
}

func TestAdminPostingValidation(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t, registry.NewMemory())
	_ = l.Register(ctx, "alice", "pw1")
	_, _ = l.Login(ctx, "admin", "adminpw")

	if _, err := l.AdminDeposit(ctx, "alice", -money.FromMajor(5)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := l.AdminDeposit(ctx, "bob", money.FromMajor(20)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	bal, err := l.AdminDeposit(ctx, "alice", money.FromMajor(20))
	if err != nil || bal != money.FromMajor(20) {
		t.Fatalf("admin deposit: bal=%s err=%v", bal, err)
	}
	if _, err := l.AdminWithdraw(ctx, "alice", money.FromMajor(25)); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	bal, err = l.AdminWithdraw(ctx, "alice", money.FromMajor(5))
	if err != nil || bal != money.FromMajor(15) {
		t.Fatalf("admin withdraw: bal=%s err=%v", bal, err)
	}

	history, err := l.UserHistory(ctx, "alice")
	if err != nil {
		t.Fatalf("user history: %v", err)
	}
	if strings.Count(history, "\n") != 2 {
		t.Fatalf("expected 2 history lines, got:\n%s", history)
	}
	if text, err := l.UserHistory(ctx, "bob"); !errors.Is(err, domain.ErrNotFound) || text != UserNotFound {
		t.Fatalf("expected user not found, got %q %v", text, err)
	}
}

func TestNonAdminIsUnauthorized(t *testing.T) {
	ctx := context.Background()
	store := registry.NewMemory()
	l, _, _ := newTestLedger(t, store)
	_ = l.Register(ctx, "bob", "pw2")
	mustRegisterAndLogin(t, l, "alice", "pw1")
	before := store.Records()

	checks := map[string]error{}
	checks["reset"] = l.ResetPassword(ctx, "bob", "hijack")
	_, checks["freeze"] = l.ToggleFreeze(ctx, "bob")
	_, checks["deposit"] = l.AdminDeposit(ctx, "bob", money.FromMajor(1))
	_, checks["withdraw"] = l.AdminWithdraw(ctx, "bob", money.FromMajor(1))
	_, checks["frozen"] = l.IsFrozen("bob")
	text, histErr := l.UserHistory(ctx, "bob")
	checks["history"] = histErr
	list, listErr := l.AllUsers()
	checks["users"] = listErr

	for name, err := range checks {
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", name, err)
		}
	}
	if text != AccessDenied || list != AccessDenied {
		t.Fatalf("expected access denied text, got %q and %q", text, list)
	}
	if !reflect.DeepEqual(before, store.Records()) {
		t.Fatal("registry changed after unauthorized calls")
	}

	l.Logout()
	if _, err := l.ToggleFreeze(ctx, "bob"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("logged out: expected unauthorized, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t, registry.NewMemory())

	if err := l.Register(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	count := l.Len()
	if err := l.Register(ctx, "alice", "other"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := l.Register(ctx, "admin", "x"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected admin collision to conflict, got %v", err)
	}
	if l.Len() != count {
		t.Fatalf("account count changed: %d -> %d", count, l.Len())
	}
	for _, tc := range [][2]string{{"", "pw"}, {"carol", ""}, {"car ol", "pw"}} {
		if err := l.Register(ctx, tc[0], tc[1]); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("register %q/%q: expected invalid input, got %v", tc[0], tc[1], err)
		}
	}
	if err := l.Register(ctx, "Alice", "pw1"); err != nil {
		t.Fatalf("usernames are case-sensitive, got %v", err)
	}
}

func TestRegisterRejectsPathLikeUsernames(t *testing.T) {
	ctx := context.Background()
	dataDir := filepath.Join(t.TempDir(), "data")
	if err := os.Mkdir(dataDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	l, err := New(ctx, registry.NewMemory(), journal.NewFile(dataDir, nil), WithHasher(credential.NewHasher(bcrypt.MinCost)))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	for _, name := range []string{"../escaped", "nodir/bob", `back\slash`, ".", ".."} {
		if err := l.Register(ctx, name, "pw"); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("register %q: expected invalid input, got %v", name, err)
		}
	}
	if l.Len() != 0 {
		t.Fatalf("expected no accounts, got %d", l.Len())
	}

	mustRegisterAndLogin(t, l, "bob.smith", "pw")
	if _, err := l.Deposit(ctx, money.FromMajor(5)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	outside, _ := filepath.Glob(filepath.Join(filepath.Dir(dataDir), "*"+journal.FileSuffix))
	if len(outside) != 0 {
		t.Fatalf("journal written outside data dir: %v", outside)
	}
}

func TestUnknownUserLoginVerifiesDecoyHash(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t, registry.NewMemory())

	if _, err := l.Login(ctx, "ghost", "pw"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	cost, err := bcrypt.Cost([]byte(l.decoy))
	if err != nil {
		t.Fatalf("expected a bcrypt decoy hash, got %q: %v", l.decoy, err)
	}
	if cost != bcrypt.MinCost {
		t.Fatalf("decoy cost %d does not match the ledger's hasher", cost)
	}
	if _, _, ok := l.Current(); ok {
		t.Fatal("session should be logged out")
	}
}

func TestHasAdmin(t *testing.T) {
	ctx := context.Background()
	l, err := New(ctx, registry.NewMemory(), journal.NewMemory(), WithHasher(credential.NewHasher(bcrypt.MinCost)))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if err := l.Register(ctx, "admin", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if l.HasAdmin() {
		t.Fatal("a registered account must not count as admin")
	}
	if err := l.EnsureAdmin(ctx, "root", "rootpw"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if !l.HasAdmin() {
		t.Fatal("expected seeded admin")
	}
}

func TestRegisteredAccountsAreNeverAdmin(t *testing.T) {
	ctx := context.Background()
	l, err := New(ctx, registry.NewMemory(), journal.NewMemory(), WithHasher(credential.NewHasher(bcrypt.MinCost)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	mustRegisterAndLogin(t, l, "admin", "pw")
	if _, role, _ := l.Current(); role != account.RoleUser {
		t.Fatalf("self-registered admin name got role %s", role)
	}
	if _, err := l.AllUsers(); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestSessionRequired(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t, registry.NewMemory())

	if _, err := l.Deposit(ctx, money.FromMajor(1)); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Fatalf("expected not logged in, got %v", err)
	}
	if _, err := l.Withdraw(ctx, money.FromMajor(1)); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Fatalf("expected not logged in, got %v", err)
	}
	if text, err := l.Balance(); !errors.Is(err, domain.ErrNotLoggedIn) || text != NotLoggedIn {
		t.Fatalf("expected not logged in sentinel, got %q %v", text, err)
	}
	if _, _, ok := l.Current(); ok {
		t.Fatal("expected no session")
	}
}

func TestFailedReloginEndsSession(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t, registry.NewMemory())
	mustRegisterAndLogin(t, l, "alice", "pw1")

	if _, err := l.Login(ctx, "alice", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, ok := l.Current(); ok {
		t.Fatal("failed login must clear the previous session")
	}
}

func TestInvalidPostingsLeaveState(t *testing.T) {
	ctx := context.Background()
	store := registry.NewMemory()
	l, j, _ := newTestLedger(t, store)
	mustRegisterAndLogin(t, l, "alice", "pw1")
	_, _ = l.Deposit(ctx, money.FromMajor(10))
	saves := store.Saves

	for _, amt := range []money.Amount{0, -1} {
		if _, err := l.Deposit(ctx, amt); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("deposit %s: expected invalid input, got %v", amt, err)
		}
	}
	if _, err := l.Withdraw(ctx, money.FromMajor(11)); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	entries, _ := j.Entries(ctx, "alice")
	if len(entries) != 1 {
		t.Fatalf("expected a single log entry, got %d", len(entries))
	}
	if store.Saves != saves {
		t.Fatalf("failed postings must not rewrite the registry")
	}
	if got, _ := l.Balance(); got != "Current balance: Rs10.00" {
		t.Fatalf("unexpected balance %q", got)
	}
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	l, _, n := newTestLedger(t, registry.NewMemory())
	_ = l.Register(ctx, "alice", "pw1")
	_, _ = l.Login(ctx, "admin", "adminpw")

	if err := l.ResetPassword(ctx, "ghost", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := l.ResetPassword(ctx, "alice", ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if err := l.ResetPassword(ctx, "alice", "fresh"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := l.Login(ctx, "alice", "pw1"); err == nil {
		t.Fatal("old password still accepted")
	}
	if _, err := l.Login(ctx, "alice", "fresh"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
	last := n.sent[len(n.sent)-1]
	if last.Kind != notification.KindPasswordReset || last.Actor != "admin" || last.Destination != "alice" {
		t.Fatalf("unexpected notification %+v", last)
	}
}

func TestAllUsersListing(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t, registry.NewMemory())
	_ = l.Register(ctx, "bob", "pw2")
	_ = l.Register(ctx, "alice", "pw1")
	_, _ = l.Login(ctx, "admin", "adminpw")
	_, _ = l.AdminDeposit(ctx, "alice", money.FromMajor(60))
	_, _ = l.ToggleFreeze(ctx, "bob")

	got, err := l.AllUsers()
	if err != nil {
		t.Fatalf("all users: %v", err)
	}
	want := "All Users:\n-----------\n" +
		"User: alice | Balance: Rs60.00\n" +
		"User: bob | Balance: Rs0.00 (FROZEN)\n"
	if got != want {
		t.Fatalf("expected:\n%s\ngot:\n%s", want, got)
	}
	if frozen, err := l.IsFrozen("bob"); err != nil || !frozen {
		t.Fatalf("is frozen: %v %v", frozen, err)
	}
}

func TestRegistrySaveFailureKeepsMutation(t *testing.T) {
	ctx := context.Background()
	store := registry.NewMemory()
	l, _, _ := newTestLedger(t, store)
	mustRegisterAndLogin(t, l, "alice", "pw1")

	store.Err = errors.New("read-only filesystem")
	bal, err := l.Deposit(ctx, money.FromMajor(5))
	if !errors.Is(err, domain.ErrStorage) || !errors.Is(err, domain.ErrNotSaved) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if bal != money.FromMajor(5) {
		t.Fatalf("expected in-memory balance 5.00, got %s", bal)
	}

	store.Err = nil
	if _, err := l.Deposit(ctx, money.FromMajor(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	for _, rec := range store.Records() {
		if rec.Username == "alice" && rec.Balance != money.FromMajor(6) {
			t.Fatalf("expected persisted balance 6.00, got %s", rec.Balance)
		}
	}
}

func TestPersistReloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := registry.NewFile(filepath.Join(dir, "users.dat"))
	hasher := credential.NewHasher(bcrypt.MinCost)

	l, err := New(ctx, store, journal.NewFile(dir, nil), WithHasher(hasher))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := l.EnsureAdmin(ctx, "admin", "adminpw"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	mustRegisterAndLogin(t, l, "alice", "pw1")
	_, _ = l.Deposit(ctx, money.FromMajor(100))
	_, _ = l.Withdraw(ctx, money.FromMajor(40))
	before := l.records()

	reloaded, err := New(ctx, store, journal.NewFile(dir, nil), WithHasher(hasher))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reflect.DeepEqual(before, reloaded.records()) {
		t.Fatalf("registry changed across reload:\nbefore=%+v\nafter=%+v", before, reloaded.records())
	}
	if _, err := reloaded.Login(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("login after reload: %v", err)
	}
	if got, _ := reloaded.Balance(); got != "Current balance: Rs60.00" {
		t.Fatalf("unexpected balance after reload %q", got)
	}
	history, _ := reloaded.History(ctx)
	if strings.Count(history, "\n") != 2 {
		t.Fatalf("expected history to survive reload:\n%s", history)
	}
}

func TestLegacyPlaintextPasswordIsUpgraded(t *testing.T) {
	ctx := context.Background()
	store := registry.NewMemory(account.Record{Username: "alice", Password: "pw1", Balance: money.FromMajor(3), Role: account.RoleUser})
	l, err := New(ctx, store, journal.NewMemory(), WithHasher(credential.NewHasher(bcrypt.MinCost)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := l.Login(ctx, "alice", "pw1"); err != nil {
		t.Fatalf("legacy login: %v", err)
	}
	rec := store.Records()[0]
	if !credential.IsHash(rec.Password) {
		t.Fatalf("expected password to be rehashed, got %q", rec.Password)
	}
	if rec.Balance != money.FromMajor(3) {
		t.Fatalf("balance changed during upgrade: %s", rec.Balance)
	}
}

func TestNewRejectsDuplicateRecords(t *testing.T) {
	store := registry.NewMemory(
		account.Record{Username: "alice", Password: "a", Role: account.RoleUser},
		account.Record{Username: "alice", Password: "b", Role: account.RoleUser},
	)
	if _, err := New(context.Background(), store, journal.NewMemory()); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestBalanceNeverNegative(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t, registry.NewMemory())
	mustRegisterAndLogin(t, l, "alice", "pw1")

	ops := []int64{500, -200, -400, 100, -400, -1, 0, -1000, 300, -300}
	for _, op := range ops {
		var bal money.Amount
		if op >= 0 {
			bal, _ = l.Deposit(ctx, money.Amount(op))
		} else {
			bal, _ = l.Withdraw(ctx, money.Amount(-op))
		}
		if bal < 0 {
			t.Fatalf("balance went negative after %d: %s", op, bal)
		}
	}
}
