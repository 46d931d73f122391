// Package store is the SQLite-backed feature provider: a local index of a
// pre-built drainage network, answering the bounding-box, attribute, and
// id queries the tracing engine issues.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hydrologic/mainstem/internal/geo"
)

//go:embed schema.sql
var schemaSQL string

// defaultLimit caps queries that don't ask for one.
const defaultLimit = 1000

// Store is a read-mostly SQLite feature index implementing
// provider.Interface. Writes happen only through Ingest.
type Store struct {
	db     *sql.DB
	fields map[string]struct{}
}

// Open creates or opens a SQLite database at the given path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during ingest
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db}
	if err := s.reloadFields(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// KnownFields reports the attribute names of the indexed dataset: the
// required segment fields plus every pass-through attribute name seen at
// ingest. The set is loaded at Open and refreshed by Ingest.
func (s *Store) KnownFields() map[string]struct{} {
	out := make(map[string]struct{}, len(s.fields))
	for k := range s.fields {
		out[k] = struct{}{}
	}
	return out
}

// reloadFields rebuilds the known-field set from the fields table.
func (s *Store) reloadFields(ctx context.Context) error {
	fields := map[string]struct{}{
		geo.FieldID:              {},
		geo.FieldPathID:          {},
		geo.FieldSequence:        {},
		geo.FieldNextPathID:      {},
		geo.FieldNextSequence:    {},
		geo.FieldDownstreamChain: {},
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM fields`)
	if err != nil {
		return fmt.Errorf("query fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan field name: %w", err)
		}
		fields[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate fields: %w", err)
	}

	s.fields = fields
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}
