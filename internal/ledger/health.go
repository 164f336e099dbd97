package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// DatabaseHealth captures ledger diagnostics for status output.
type DatabaseHealth struct {
	DBPath           string `json:"dbPath"`
	DatabaseExists   bool   `json:"databaseExists"`
	DatabaseReadable bool   `json:"databaseReadable"`
	SchemaVersion    int    `json:"schemaVersion"`
	IntegrityCheck   bool   `json:"integrityCheck"`
	StrikeRecords    int    `json:"strikeRecords"`
	Actions          int    `json:"actions"`
	Error            string `json:"error,omitempty"`
}

// CheckHealth returns diagnostic information about the ledger database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat ledger database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("ledger database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping ledger database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}
	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM strikes").Scan(&health.StrikeRecords); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count strikes: %w", err)
	}
	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM actions").Scan(&health.Actions); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count actions: %w", err)
	}

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return health, nil
}
