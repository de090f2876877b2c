package registry

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/simpleatm/atm/internal/account"
	"github.com/simpleatm/atm/internal/money"
)

// LegacyAdminUsername is the account promoted to admin when reading
// three-field lines that predate the role column.
const LegacyAdminUsername = "admin"

// File stores one account per line:
//
//	username password balance frozen role
//
// Three-field lines (username password balance) are accepted on load.
type File struct {
	path string
}

// NewFile returns a Store backed by the file at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Load reads every record. A missing file is an empty registry.
func (s *File) Load(_ context.Context) ([]account.Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []account.Record
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		rec, err := parseRecord(fields)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.path, line, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseRecord(fields []string) (account.Record, error) {
	if len(fields) != 3 && len(fields) != 5 {
		return account.Record{}, fmt.Errorf("expected 3 or 5 fields, got %d", len(fields))
	}
	balance, err := money.Parse(fields[2])
	if err != nil {
		return account.Record{}, err
	}
	rec := account.Record{Username: fields[0], Password: fields[1], Balance: balance, Role: account.RoleUser}
	if len(fields) == 3 {
		if rec.Username == LegacyAdminUsername {
			rec.Role = account.RoleAdmin
		}
		return rec, nil
	}

	switch fields[3] {
	case "0":
	case "1":
		rec.Frozen = true
	default:
		return account.Record{}, fmt.Errorf("bad frozen flag %q", fields[3])
	}
	rec.Role = account.Role(fields[4])
	if !rec.Role.Valid() {
		return account.Record{}, fmt.Errorf("bad role %q", fields[4])
	}
	return rec, nil
}

// Save writes all records to a temporary file in the same directory, syncs it
// and renames it over the registry.
func (s *File) Save(_ context.Context, records []account.Record) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		frozen := "0"
		if rec.Frozen {
			frozen = "1"
		}
		if _, err := fmt.Fprintf(w, "%s %s %s %s %s\n", rec.Username, rec.Password, rec.Balance, frozen, rec.Role); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
