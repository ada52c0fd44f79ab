// Package counter persists the last observed transaction count across
// process restarts. Writes go to a temp file first and are renamed into
// place, so a crash mid-write leaves either the old or the new value.
package counter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/demobank/transaction-notifier/internal/domain"
	"github.com/demobank/transaction-notifier/pkg/logger"
)

type File struct {
	path   string
	logger *logger.Logger
}

func NewFile(path string, log *logger.Logger) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating counter directory: %v", domain.ErrCounterIO, err)
	}

	return &File{
		path:   path,
		logger: log,
	}, nil
}

// Path returns the location of the counter file.
func (f *File) Path() string {
	return f.path
}

// Read returns the stored count. Missing state is a cold start and reads
// as 0; so does an unparsable file, matching the checker this replaces.
func (f *File) Read() (uint64, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.logger.Info(context.Background(), "Counter file does not exist, starting from 0",
			"path", f.path,
		)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: reading counter file: %v", domain.ErrCounterIO, err)
	}

	value, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		f.logger.Warn(context.Background(), "Counter file unreadable, starting from 0",
			"path", f.path,
			"error", err,
		)
		return 0, nil
	}

	return value, nil
}

// Write atomically replaces the stored count.
func (f *File) Write(value uint64) error {
	tmp := f.path + ".tmp"

	if err := os.WriteFile(tmp, []byte(strconv.FormatUint(value, 10)), 0o644); err != nil {
		return fmt.Errorf("%w: writing temp counter file: %v", domain.ErrCounterIO, err)
	}

	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: replacing counter file: %v", domain.ErrCounterIO, err)
	}

	return nil
}
