package database

import (
	"database/sql"

	"github.com/TobiSchelling/hypetrack/internal/dataset"
)

// RecordArtifact registers (or refreshes) a written artifact.
func (db *DB) RecordArtifact(a Artifact) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO artifacts
		(path, schema_name, schema_version, row_count, byte_count, content_sha256, written_at)
		VALUES (?, ?, ?, ?, ?, ?, datetime('now'))`,
		a.Path, a.SchemaName, a.SchemaVersion, a.RowCount, a.ByteCount, a.ContentSHA256,
	)
	return err
}

// RecordWrite registers the artifact described by a dataset write.
func (db *DB) RecordWrite(res dataset.WriteResult) error {
	return db.RecordArtifact(Artifact{
		Path:          res.Path,
		SchemaName:    res.Schema.Name,
		SchemaVersion: res.Schema.Version,
		RowCount:      res.Rows,
		ByteCount:     res.Bytes,
		ContentSHA256: res.SHA256,
	})
}

// GetArtifact returns the registry entry for path, or nil.
func (db *DB) GetArtifact(path string) (*Artifact, error) {
	row := db.conn.QueryRow(
		`SELECT path, schema_name, schema_version, row_count, byte_count, content_sha256, written_at
		FROM artifacts WHERE path = ?`, path,
	)
	var a Artifact
	err := row.Scan(&a.Path, &a.SchemaName, &a.SchemaVersion, &a.RowCount, &a.ByteCount, &a.ContentSHA256, &a.WrittenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetArtifacts returns all registered artifacts ordered by path.
func (db *DB) GetArtifacts() ([]Artifact, error) {
	rows, err := db.conn.Query(
		`SELECT path, schema_name, schema_version, row_count, byte_count, content_sha256, written_at
		FROM artifacts ORDER BY path`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Path, &a.SchemaName, &a.SchemaVersion, &a.RowCount, &a.ByteCount, &a.ContentSHA256, &a.WrittenAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
