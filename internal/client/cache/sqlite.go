package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/collabdesk/collabdesk/internal/dbx"
)

// SQLite implements Cache on a local SQLite database so cached state
// survives process restarts. It uses a DBTX (either *sql.DB or *sql.Tx).
type SQLite struct {
	db  dbx.DBTX
	now func() time.Time
}

// NewSQLite returns a SQLite cache bound to the given DBTX. The schema must
// already exist, see InitSchema.
func NewSQLite(db dbx.DBTX) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

// WithClock overrides the cache's notion of "now". Intended for tests.
func (c *SQLite) WithClock(now func() time.Time) *SQLite {
	c.now = now
	return c
}

// InitSchema creates the cache table if it does not exist.
func InitSchema(ctx context.Context, db dbx.DBTX) error {
	query := `CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL
	)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create cache table: %w", err)
	}
	return nil
}

// OpenDatabase opens (creating if necessary) the local cache database at dsn
// and ensures the schema exists.
func OpenDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := InitSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (c *SQLite) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	query := `INSERT INTO cache (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`
	if _, err := c.db.ExecContext(ctx, query, key, data, c.now().Add(ttl).UnixMilli()); err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

func (c *SQLite) Get(ctx context.Context, key string, dest any) (bool, error) {
	query := `SELECT value, expires_at FROM cache WHERE key = ?`
	row := c.db.QueryRowContext(ctx, query, key)

	var data []byte
	var expiresAt int64
	if err := row.Scan(&data, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if c.now().UnixMilli() >= expiresAt {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

// PurgeExpired removes rows whose TTL already elapsed. Reads already treat
// such rows as misses; the purge reclaims the space. Runs in a transaction
// so a concurrent writer never observes a partial sweep.
func PurgeExpired(ctx context.Context, db *sql.DB) error {
	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM cache WHERE expires_at <= ?`, time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to purge expired cache rows: %w", err)
		}
		return nil
	})
}

func (c *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}
