package postgres

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	selectDocument = `SELECT value FROM kv_store WHERE key = $1`
	upsertDocument = `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
)

// Store keeps JSON documents in the kv_store table.
type Store struct {
	conn *Connection
}

// Open connects, applies pending migrations and returns a store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	conn, err := NewConnection(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := NewMigrator(conn).Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return NewStore(conn), nil
}

// NewStore wraps a migrated connection.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

// Load decodes the document under key into dst. It reports false when the
// document does not exist.
func (s *Store) Load(ctx context.Context, key string, dst any) (bool, error) {
	var raw []byte
	if err := s.conn.QueryRow(ctx, selectDocument, key).Scan(&raw); err != nil {
		if IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("postgres: load %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("postgres: decode %q: %w", key, err)
	}
	return true, nil
}

// Dump encodes value and upserts it under key.
func (s *Store) Dump(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("postgres: encode %q: %w", key, err)
	}
	if _, err := s.conn.Exec(ctx, upsertDocument, key, string(raw)); err != nil {
		return fmt.Errorf("postgres: dump %q: %w", key, err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.conn.Close()
	return nil
}
