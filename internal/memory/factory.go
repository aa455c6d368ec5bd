package memory

import (
	"context"
	"strings"
)

// NewStore picks postgres when a database URL is set, then a state file, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL, stateFile string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(stateFile) != "" {
		return NewFileStore(strings.TrimSpace(stateFile))
	}
	return NewInMemoryStore(), nil
}

// Mode reports the backend kind of a store for health output.
func Mode(s Store) string {
	switch s.(type) {
	case *PostgresStore:
		return "postgres"
	case *FileStore:
		return "file"
	case *InMemoryStore:
		return "in-memory"
	default:
		return "custom"
	}
}
