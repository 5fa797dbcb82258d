// Package store persists omnichat's sessions in SQLite. This file
// upgrades databases created by older builds: columns added since the
// first release are applied with ALTER TABLE, guarded by PRAGMA
// table_info checks so re-runs are harmless.
package store

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"omnichat/internal/logging"
)

// Migration defines one additive schema change.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists columns newer than the v1 schema.
var pendingMigrations = []Migration{
	// Session model pinning (added with the /model command)
	{"sessions", "model", "TEXT NOT NULL DEFAULT ''"},
	// Multimodal turns (added with media staging)
	{"messages", "attachments", "TEXT"},
	{"messages", "token_estimate", "INTEGER DEFAULT 0"},
	// Recall metadata (added with compaction summaries)
	{"recall", "metadata", "TEXT"},
	{"recall", "session_id", "TEXT NOT NULL DEFAULT ''"},
}

// RunMigrations applies schema migrations for existing databases.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	applied := 0
	skipped := 0

	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			skipped++
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			skipped++
			continue
		}

		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			// Column may already exist in a different form; not fatal.
			logging.Get(logging.CategoryStore).Warn("Migration failed: %s.%s: %v", m.Table, m.Column, err)
			skipped++
			continue
		}
		logging.Store("Migration applied: added %s.%s", m.Table, m.Column)
		applied++
	}

	logging.StoreDebug("Schema migrations complete: applied=%d skipped=%d", applied, skipped)
	return nil
}

// columnExists checks a column via PRAGMA table_info.
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
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

// tableExists checks sqlite_master for a table.
func tableExists(db *sql.DB, table string) bool {
	var count int
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?"
	if err := db.QueryRow(query, table).Scan(&count); err != nil {
		return false
	}
	return count > 0
}

// CreateBackup copies the database file aside before risky operations.
// Returns the backup path.
func CreateBackup(dbPath string) (string, error) {
	timer := logging.StartTimer(logging.CategoryStore, "CreateBackup")
	defer timer.Stop()

	backupPath := fmt.Sprintf("%s.backup-%s", dbPath, time.Now().Format("20060102-150405"))
	logging.Store("Creating database backup: %s", backupPath)

	src, err := os.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source database: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	bytesCopied, err := io.Copy(dst, src)
	if err != nil {
		return "", fmt.Errorf("failed to copy database to backup: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync backup to disk: %w", err)
	}

	logging.Store("Database backup created: %s (%d bytes)", backupPath, bytesCopied)
	return backupPath, nil
}

// RestoreBackup copies a backup file over the live database. The store
// must be closed first; WAL sidecar files are removed so SQLite does
// not replay stale pages over the restored copy.
func RestoreBackup(backupPath, dbPath string) error {
	timer := logging.StartTimer(logging.CategoryStore, "RestoreBackup")
	defer timer.Stop()

	src, err := os.Open(backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database for restore: %w", err)
	}
	defer dst.Close()

	bytesCopied, err := io.Copy(dst, src)
	if err != nil {
		return fmt.Errorf("failed to copy backup over database: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return fmt.Errorf("failed to sync restored database: %w", err)
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			logging.Get(logging.CategoryStore).Warn("Could not remove %s%s: %v", dbPath, suffix, err)
		}
	}

	logging.Store("Database restored from %s (%d bytes)", backupPath, bytesCopied)
	return nil
}
