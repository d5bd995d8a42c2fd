// Package identitystore is the central, process-wide durable store:
// users, subscriptions, token transactions, Telegram link codes,
// sessions, agents, agent-scoped memories, and the payment ledger.
//
// The underlying connection is a single *sql.DB guarded by a mutex, the
// way the teacher's Auth/Core structs wrap a single collaborator behind
// a lock — SQLite tolerates concurrent readers under WAL but serializes
// writers, so every write goes through Store.withLock.
package identitystore

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// Store is the central identity store.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (and, if needed, creates) the central SQLite database at path
// and applies the schema. WAL journal mode and normal sync balance
// durability against write throughput, matching spec §4.A.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("identitystore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer SQLite handle; see package doc

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return nil, fmt.Errorf("identitystore: enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL;`); err != nil {
		return nil, fmt.Errorf("identitystore: set synchronous: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
		return nil, fmt.Errorf("identitystore: enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	telegram_id TEXT UNIQUE,
	telegram_username TEXT,
	created_at TIMESTAMP NOT NULL,
	last_login_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
CREATE INDEX IF NOT EXISTS idx_users_telegram_id ON users(telegram_id);

CREATE TABLE IF NOT EXISTS subscriptions (
	user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	status TEXT NOT NULL,
	trial_started_at TIMESTAMP NOT NULL,
	trial_tokens_used INTEGER NOT NULL DEFAULT 0,
	trial_tokens_limit INTEGER NOT NULL DEFAULT 100000,
	paid_until TIMESTAMP,
	total_tokens_purchased INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS token_transactions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	amount INTEGER NOT NULL,
	cost_cents INTEGER NOT NULL,
	price_cents INTEGER NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	description TEXT NOT NULL,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_token_transactions_user_id ON token_transactions(user_id);

CREATE TABLE IF NOT EXISTS telegram_link_codes (
	code TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_telegram_link_codes_user_id ON telegram_link_codes(user_id);

CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	config TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agents_user_id ON agents(user_id);

CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	key TEXT NOT NULL,
	content TEXT NOT NULL,
	category TEXT NOT NULL,
	embedding TEXT NOT NULL,
	session_id TEXT,
	created_at TIMESTAMP NOT NULL,
	UNIQUE(agent_id, key)
);
CREATE INDEX IF NOT EXISTS idx_memories_agent_id ON memories(agent_id);
CREATE INDEX IF NOT EXISTS idx_memories_agent_category ON memories(agent_id, category);

CREATE TABLE IF NOT EXISTS payment_ledger (
	uuid TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

func (s *Store) initSchema() error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("identitystore: init schema: %w", err)
	}
	return nil
}

// withLock serializes writers over the single connection. Readers could in
// principle bypass this under WAL, but the store's write volume is low
// enough that a single lock keeps the package simple and avoids busy
// errors from modernc.org/sqlite's single *sql.DB connection.
func (s *Store) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}
