// Package tenantstore owns the per-tenant SQLite database (brain.db):
// conversation history, goals, profile, and feature settings for a single
// user's tenant workspace. A Manager caches one *TenantStore per user id
// so repeated requests reuse the open connection instead of reopening the
// file each time.
package tenantstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// TenantStore wraps a single tenant's brain.db connection, opened through
// sqlx. Queries scan their columns field by field with Scan; the entity
// types' db struct tags are not used here.
type TenantStore struct {
	mu sync.Mutex
	db *sqlx.DB
}

const tenantSchema = `
CREATE TABLE IF NOT EXISTS conversation_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	tokens INTEGER,
	provider TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS goals (
	id TEXT PRIMARY KEY,
	original_text TEXT NOT NULL,
	transformed_text TEXT NOT NULL,
	category TEXT NOT NULL,
	status TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	milestones TEXT NOT NULL DEFAULT '[]',
	notion_page_id TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS profile (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS feature_settings (
	feature_key TEXT PRIMARY KEY,
	enabled INTEGER NOT NULL DEFAULT 0,
	config TEXT NOT NULL DEFAULT '{}'
);
`

func openTenantDB(path string) (*TenantStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("tenantstore: mkdir: %w", err)
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tenantstore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("tenantstore: pragmas: %w", err)
	}
	if _, err := db.Exec(tenantSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("tenantstore: schema: %w", err)
	}
	return &TenantStore{db: db}, nil
}

func (t *TenantStore) Close() error {
	return t.db.Close()
}

func (t *TenantStore) withLock(fn func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn()
}
