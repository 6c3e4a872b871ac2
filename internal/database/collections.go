package database

import (
	"database/sql"
)

// UpsertCollection writes or replaces a season's completion marker.
func (db *DB) UpsertCollection(c SeasonCollection) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO season_collections
		(season_id, content_id, status, record_count, total_read, content_sha256, schema_version, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))`,
		c.SeasonID, c.ContentID, c.Status, c.RecordCount, c.TotalRead, c.ContentSHA256, c.SchemaVersion,
	)
	return err
}

// GetCollection returns the marker for a season, or nil if none was written.
func (db *DB) GetCollection(seasonID string) (*SeasonCollection, error) {
	row := db.conn.QueryRow(
		`SELECT season_id, content_id, status, record_count, total_read, content_sha256, schema_version, completed_at
		FROM season_collections WHERE season_id = ?`, seasonID,
	)
	c, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetCollections returns every marker ordered by season id.
func (db *DB) GetCollections() ([]SeasonCollection, error) {
	rows, err := db.conn.Query(
		`SELECT season_id, content_id, status, record_count, total_read, content_sha256, schema_version, completed_at
		FROM season_collections ORDER BY season_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SeasonCollection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// DeleteCollection removes a season's marker so the next run re-collects it.
func (db *DB) DeleteCollection(seasonID string) error {
	_, err := db.conn.Exec("DELETE FROM season_collections WHERE season_id = ?", seasonID)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCollection(s scanner) (*SeasonCollection, error) {
	var c SeasonCollection
	var contentID *string
	if err := s.Scan(&c.SeasonID, &contentID, &c.Status, &c.RecordCount, &c.TotalRead,
		&c.ContentSHA256, &c.SchemaVersion, &c.CompletedAt); err != nil {
		return nil, err
	}
	if contentID != nil {
		c.ContentID = *contentID
	}
	return &c, nil
}
