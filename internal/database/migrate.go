package database

import (
	"fmt"

	"go.uber.org/zap"
)

func (db *DB) schemaVersion() (int, error) {
	var v int
	if err := db.conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading user_version: %w", err)
	}
	return v, nil
}

// migrate applies every migration newer than the stored user_version, each
// in its own transaction. A database written by a newer binary is refused.
func (db *DB) migrate() error {
	current, err := db.schemaVersion()
	if err != nil {
		return err
	}

	latest := latestVersion()
	switch {
	case current > latest:
		return fmt.Errorf("schema version %d is newer than supported version %d", current, latest)
	case current == latest:
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		db.logger.Info("Applying migration",
			zap.Int("version", m.Version),
			zap.String("description", m.Description))

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: begin: %w", m.Version, err)
		}
		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", m.Version, err)
		}

		// user_version cannot be set inside the transaction with this driver.
		// The DDL is idempotent, so a crash here just reruns the step.
		if _, err := db.conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			return fmt.Errorf("migration %d: recording version: %w", m.Version, err)
		}
	}
	return nil
}
