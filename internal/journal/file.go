// Package journal provides account.Journal backends: per-user text files,
// Redis lists, PostgreSQL rows and an in-memory variant for tests.
package journal

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/simpleatm/atm/internal/account"
)

// FileSuffix is appended to the username to form the log file name.
const FileSuffix = "_transactions.txt"

// File keeps one append-only text file per account inside dir.
type File struct {
	dir    string
	logger *slog.Logger
}

// NewFile returns a journal writing under dir. Unreadable log lines are
// reported to logger; a nil logger drops them silently.
func NewFile(dir string, logger *slog.Logger) *File {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &File{dir: dir, logger: logger}
}

// Path returns the log file used for username.
func (j *File) Path(username string) string {
	return filepath.Join(j.dir, username+FileSuffix)
}

// Append writes the entry as a single line and syncs it to disk. A previous
// write cut short by a crash leaves no trailing newline; that line is
// terminated first so the new entry starts on its own line.
func (j *File) Append(_ context.Context, username string, entry account.Entry) error {
	if err := account.ValidateUsername(username); err != nil {
		return err
	}
	f, err := os.OpenFile(j.Path(username), os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	line := entry.String() + "\n"
	torn, err := missingNewline(f)
	if err != nil {
		f.Close()
		return err
	}
	if torn {
		line = "\n" + line
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func missingNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}

// Entries reads the log back. A missing file is an empty log. Lines that do
// not parse are logged and skipped. Logs written by the old program put the
// timestamp's trailing newline inside the brackets; such split lines are
// joined before parsing.
func (j *File) Entries(_ context.Context, username string) ([]account.Entry, error) {
	if err := account.ValidateUsername(username); err != nil {
		return nil, err
	}
	path := j.Path(username)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var (
		out     []account.Entry
		pending string
		lineNo  int
	)
	skip := func(n int, text string, err error) {
		j.logger.Warn("skipping unreadable journal line",
			slog.String("path", path), slog.Int("line", n), slog.String("text", text), slog.Any("error", err))
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		text := strings.TrimRight(scanner.Text(), "\r")
		if pending != "" {
			if strings.HasPrefix(text, "]") {
				text = pending + text
			} else {
				skip(lineNo-1, pending, errors.New("unterminated timestamp"))
			}
			pending = ""
		}
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "[") && !strings.Contains(text, "]") {
			pending = text
			continue
		}
		entry, err := account.ParseEntry(text)
		if err != nil {
			skip(lineNo, text, err)
			continue
		}
		out = append(out, entry)
	}
	if pending != "" {
		skip(lineNo, pending, errors.New("unterminated timestamp"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
