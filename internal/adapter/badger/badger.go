package badger

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Open opens (or creates) the database at path. An empty path opens an
// in-memory database.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(slogLogger{}).
		WithLoggingLevel(badger.WARNING)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	slog.Info("Badger database opened", "path", path, "in_memory", path == "")
	return db, nil
}

// slogLogger routes badger's printf-style logging into slog.
type slogLogger struct{}

func (slogLogger) Errorf(format string, args ...any) {
	slog.Error(trimLine(format, args), "component", "badger")
}

func (slogLogger) Warningf(format string, args ...any) {
	slog.Warn(trimLine(format, args), "component", "badger")
}

func (slogLogger) Infof(format string, args ...any) {
	slog.Info(trimLine(format, args), "component", "badger")
}

func (slogLogger) Debugf(format string, args ...any) {
	slog.Debug(trimLine(format, args), "component", "badger")
}

func trimLine(format string, args []any) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
