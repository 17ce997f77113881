// Package store owns the corpus SQLite database: schema lifecycle, the
// Embedding Index's persistence, and the vector search backend (cgo
// sqlite-vec when built with -tags sqlite_vec,cgo; a pure-Go vec0 compat
// layer otherwise).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cogsensor/internal/logging"
)

// LocalStore owns the corpus SQLite connection: the read-only messages
// table, the embeddings table, and (when available) the vec_index ANN
// virtual table mirroring it.
type LocalStore struct {
	db         *sql.DB
	mu         sync.RWMutex
	dbPath     string
	vectorExt  bool // sqlite-vec (or its compat layer) available
	requireVec bool // fail NewLocalStore if vec support is unavailable
}

// Option configures LocalStore construction.
type Option func(*LocalStore)

// WithRequireVec fails NewLocalStore if no vec0 backend (cgo sqlite-vec or
// the modernc compat layer) registered successfully.
func WithRequireVec(require bool) Option {
	return func(s *LocalStore) { s.requireVec = require }
}

// NewLocalStore opens (creating if necessary) the SQLite database at path
// and ensures the corpus schema exists.
func NewLocalStore(path string, opts ...Option) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	logging.Store("initializing LocalStore at path: %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL", // WAL already gives crash recovery; NORMAL is a safe 5-10x write speedup
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("pragma failed (%s): %v", pragma, err)
		}
	}

	store := &LocalStore{db: db, dbPath: path}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.detectVecExtension()
	if store.requireVec && !store.vectorExt {
		db.Close()
		return nil, fmt.Errorf("no vec0 backend available; build with -tags sqlite_vec,cgo or rely on the modernc compat layer")
	}
	if store.vectorExt {
		logging.Store("vec0 backend available: ANN search enabled")
	} else {
		logging.Get(logging.CategoryStore).Warn("no vec0 backend available; falling back to brute-force cosine search")
	}

	logging.Store("LocalStore ready: messages + embeddings schema initialized")
	return store, nil
}

// initialize creates the corpus schema and runs any pending migrations.
func (s *LocalStore) initialize() error {
	baseTables := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			conversation_id TEXT NOT NULL,
			message_index   INTEGER NOT NULL,
			role            TEXT NOT NULL,
			text            TEXT NOT NULL,
			created_at      DATETIME NOT NULL,
			PRIMARY KEY (conversation_id, message_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at)`,

		`CREATE TABLE IF NOT EXISTS embeddings (
			conversation_id TEXT NOT NULL,
			model_id        TEXT NOT NULL,
			vector_json     TEXT NOT NULL,
			text_length     INTEGER NOT NULL,
			created_at      DATETIME NOT NULL,
			PRIMARY KEY (conversation_id, model_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model_id)`,
	}

	for _, ddl := range baseTables {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	if err := RunMigrations(s.db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// detectVecExtension probes whether a vec0 virtual table module is
// registered (either the cgo sqlite-vec extension or the modernc compat
// layer in vec_compat.go) and maintains the vec_index mirror table.
func (s *LocalStore) detectVecExtension() {
	if s.db == nil {
		return
	}
	if _, err := s.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		s.vectorExt = true
		_, _ = s.db.Exec("DROP TABLE IF EXISTS vec_probe")
		return
	}
	s.vectorExt = false
}

// VectorSearchEnabled reports whether a vec0 ANN backend is active.
func (s *LocalStore) VectorSearchEnabled() bool {
	return s.vectorExt
}

// Close closes the underlying database connection.
func (s *LocalStore) Close() error {
	logging.Store("closing LocalStore database connection")
	return s.db.Close()
}

// DB returns the underlying connection for packages (internal/corpus) that
// need direct read access to the messages table.
func (s *LocalStore) DB() *sql.DB {
	return s.db
}

// GetStats returns row counts per corpus table, for CLI diagnostics.
func (s *LocalStore) GetStats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"messages", "embeddings"} {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			logging.StoreDebug("stats: table %s count failed: %v", table, err)
			continue
		}
		stats[table] = count
	}
	return stats, nil
}
