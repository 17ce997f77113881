// Package store provides versioned schema migrations for the corpus
// database: the messages/embeddings base schema, the vec_index ANN mirror,
// and (for either) a pre-migration backup-and-restore-on-failure guard.
package store

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"cogsensor/internal/logging"
)

// Schema versions:
// v1: messages + embeddings base tables (created directly by initialize()).
// v2: vec_index virtual table mirroring embeddings, for ANN search.
const CurrentSchemaVersion = 2

// MigrationResult reports what RunAllMigrations did.
type MigrationResult struct {
	FromVersion   int
	ToVersion     int
	BackupPath    string
	Duration      time.Duration
	Warnings      []string
}

// RunMigrations brings a freshly opened database's schema up to
// CurrentSchemaVersion. Safe to call on every startup; each step is
// idempotent.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	version := GetSchemaVersion(db)
	logging.StoreDebug("schema at version %d, target %d", version, CurrentSchemaVersion)

	if version < 2 {
		if err := MigrateV1ToV2(db); err != nil {
			return fmt.Errorf("migrate v1->v2: %w", err)
		}
		if err := SetSchemaVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

// columnExists checks if a column exists in a table via PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

// tableExists checks if a table exists in the database.
func tableExists(db *sql.DB, table string) bool {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
	return err == nil && count > 0
}

// GetSchemaVersion returns the current schema version, recorded in
// schema_versions or inferred from table structure for pre-versioning
// databases.
func GetSchemaVersion(db *sql.DB) int {
	if tableExists(db, "schema_versions") {
		var version int
		err := db.QueryRow("SELECT version FROM schema_versions ORDER BY applied_at DESC LIMIT 1").Scan(&version)
		if err == nil {
			return version
		}
	}
	return inferSchemaVersion(db)
}

// inferSchemaVersion determines schema version by examining table structure,
// for databases created before schema_versions existed.
func inferSchemaVersion(db *sql.DB) int {
	if !tableExists(db, "messages") {
		return 0
	}
	if tableExists(db, "vec_index") {
		return 2
	}
	return 1
}

// SetSchemaVersion records a new schema version.
func SetSchemaVersion(db *sql.DB, version int) error {
	createTable := `
		CREATE TABLE IF NOT EXISTS schema_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			description TEXT
		)`
	if _, err := db.Exec(createTable); err != nil {
		return fmt.Errorf("create schema_versions table: %w", err)
	}

	desc := fmt.Sprintf("migrated to schema version %d", version)
	if _, err := db.Exec("INSERT INTO schema_versions (version, description) VALUES (?, ?)", version, desc); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	logging.Store("schema version set to %d", version)
	return nil
}

// MigrateV1ToV2 creates the vec_index virtual table for ANN search over the
// Embedding Index. vec_index is optional infrastructure: if no vec0 module
// is registered (neither cgo sqlite-vec nor the modernc compat layer), the
// pipeline falls back to brute-force cosine search and this step no-ops.
func MigrateV1ToV2(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "MigrateV1ToV2")
	defer timer.Stop()

	if tableExists(db, "vec_index") {
		return nil
	}

	query := `CREATE VIRTUAL TABLE IF NOT EXISTS vec_index USING vec0(
		embedding float[384],
		conversation_id TEXT
	)`
	if _, err := db.Exec(query); err != nil {
		logging.Get(logging.CategoryStore).Warn("vec_index creation skipped (no vec0 backend): %v", err)
		return nil
	}

	logging.Store("created vec_index virtual table for ANN search")
	return nil
}

// CreateBackup copies the database file to a timestamped sibling path.
func CreateBackup(dbPath string) (string, error) {
	timer := logging.StartTimer(logging.CategoryStore, "CreateBackup")
	defer timer.Stop()

	backupPath := dbPath + fmt.Sprintf(".backup_%s", time.Now().Format("20060102_150405"))

	src, err := os.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("open source database: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copy database to backup: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return "", fmt.Errorf("sync backup to disk: %w", err)
	}

	logging.Store("database backup created: %s", backupPath)
	return backupPath, nil
}

// RestoreBackup restores a database file from a backup created by CreateBackup.
func RestoreBackup(dbPath, backupPath string) error {
	timer := logging.StartTimer(logging.CategoryStore, "RestoreBackup")
	defer timer.Stop()

	src, err := os.Open(backupPath)
	if err != nil {
		return fmt.Errorf("open backup file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dbPath)
	if err != nil {
		return fmt.Errorf("create database file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("restore from backup: %w", err)
	}
	return dst.Sync()
}

// RunAllMigrations opens dbPath, backs it up, and migrates it to
// targetVersion, restoring the backup if any migration step fails.
func RunAllMigrations(dbPath string, targetVersion int) (*MigrationResult, error) {
	timer := logging.StartTimer(logging.CategoryStore, "RunAllMigrations")
	defer timer.Stop()

	start := time.Now()
	result := &MigrationResult{Warnings: make([]string, 0)}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	current := GetSchemaVersion(db)
	result.FromVersion = current
	result.ToVersion = targetVersion

	if current >= targetVersion {
		result.Duration = time.Since(start)
		return result, nil
	}

	backupPath, err := CreateBackup(dbPath)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	result.BackupPath = backupPath

	success := false
	defer func() {
		if !success {
			logging.Get(logging.CategoryStore).Warn("migration failed, restoring from backup")
			if restoreErr := RestoreBackup(dbPath, backupPath); restoreErr != nil {
				logging.Get(logging.CategoryStore).Error("failed to restore backup: %v", restoreErr)
			}
		}
	}()

	for v := current; v < targetVersion; v++ {
		next := v + 1
		var migrationErr error
		switch next {
		case 2:
			migrationErr = MigrateV1ToV2(db)
		default:
			migrationErr = fmt.Errorf("unknown migration: v%d -> v%d", v, next)
		}
		if migrationErr != nil {
			return nil, fmt.Errorf("migration v%d -> v%d failed: %w", v, next, migrationErr)
		}
		if err := SetSchemaVersion(db, next); err != nil {
			return nil, err
		}
	}

	success = true
	result.Duration = time.Since(start)
	return result, nil
}
