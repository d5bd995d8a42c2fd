package tenantstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Manager caches one open TenantStore per user id under workspaceRoot. A
// tenant's directory is workspaceRoot/<user_id>/ and its database file is
// brain.db inside it (spec §4.B).
type Manager struct {
	root string

	mu    sync.Mutex
	cache map[string]*TenantStore
}

func NewManager(workspaceRoot string) *Manager {
	return &Manager{root: workspaceRoot, cache: make(map[string]*TenantStore)}
}

func (m *Manager) dbPath(userID string) string {
	return filepath.Join(m.root, userID, "brain.db")
}

// Get returns the cached store for userID, opening and caching it on first
// use.
func (m *Manager) Get(userID string) (*TenantStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ts, ok := m.cache[userID]; ok {
		return ts, nil
	}
	ts, err := openTenantDB(m.dbPath(userID))
	if err != nil {
		return nil, err
	}
	m.cache[userID] = ts
	return ts, nil
}

// Exists reports whether a tenant workspace has already been created, by
// probing the filesystem rather than the cache — a tenant created by a
// prior process run is still "existing" even before this Manager has
// opened it.
func (m *Manager) Exists(userID string) bool {
	_, err := os.Stat(m.dbPath(userID))
	return err == nil
}

// Delete evicts the cached connection (closing it) and removes the
// tenant's entire directory from disk. Irreversible — callers are expected
// to have already confirmed this with the owning user.
func (m *Manager) Delete(userID string) error {
	m.mu.Lock()
	if ts, ok := m.cache[userID]; ok {
		ts.Close()
		delete(m.cache, userID)
	}
	m.mu.Unlock()

	dir := filepath.Join(m.root, userID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("tenantstore: delete tenant %s: %w", userID, err)
	}
	return nil
}

// CloseAll closes every cached connection, for graceful shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ts := range m.cache {
		ts.Close()
		delete(m.cache, id)
	}
}
