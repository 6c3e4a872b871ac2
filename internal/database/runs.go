package database

// InsertRunReport stores a finished pipeline run.
func (db *DB) InsertRunReport(r RunReport) error {
	_, err := db.conn.Exec(
		`INSERT INTO run_reports
		(id, started_at, finished_at, accepted_count, prediction_count, season_count, accuracy)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt, r.FinishedAt, r.AcceptedCount, r.PredictionCount, r.SeasonCount, r.Accuracy,
	)
	return err
}

// GetRecentRuns returns up to limit run reports, newest first.
func (db *DB) GetRecentRuns(limit int) ([]RunReport, error) {
	rows, err := db.conn.Query(
		`SELECT id, started_at, finished_at, accepted_count, prediction_count, season_count, accuracy
		FROM run_reports ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunReport
	for rows.Next() {
		var r RunReport
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.AcceptedCount,
			&r.PredictionCount, &r.SeasonCount, &r.Accuracy); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertValidationRun appends a validation outcome and returns its id.
func (db *DB) InsertValidationRun(v ValidationRun) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO validation_runs (row_count, dropped_labels, dropped_failures, accuracy)
		VALUES (?, ?, ?, ?)`,
		v.RowCount, v.DroppedLabels, v.DroppedFailures, v.Accuracy,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetValidationRuns returns validation history, newest first.
func (db *DB) GetValidationRuns(limit int) ([]ValidationRun, error) {
	rows, err := db.conn.Query(
		`SELECT id, row_count, dropped_labels, dropped_failures, accuracy, created_at
		FROM validation_runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ValidationRun
	for rows.Next() {
		var v ValidationRun
		if err := rows.Scan(&v.ID, &v.RowCount, &v.DroppedLabels, &v.DroppedFailures, &v.Accuracy, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetStats returns aggregate bookkeeping statistics.
func (db *DB) GetStats() (*Stats, error) {
	var s Stats
	var complete, partial, accepted *int
	err := db.conn.QueryRow(
		`SELECT
			SUM(CASE WHEN status = 'complete' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'partial' THEN 1 ELSE 0 END),
			SUM(record_count)
		FROM season_collections`,
	).Scan(&complete, &partial, &accepted)
	if err != nil {
		return nil, err
	}
	s.CompleteSeasons = derefInt(complete)
	s.PartialSeasons = derefInt(partial)
	s.AcceptedRecords = derefInt(accepted)

	if err := db.conn.QueryRow("SELECT COUNT(*) FROM artifacts").Scan(&s.Artifacts); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM run_reports").Scan(&s.Runs); err != nil {
		return nil, err
	}

	runs, err := db.GetValidationRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 1 {
		acc := runs[0].Accuracy
		s.LastAccuracy = &acc
	}
	return &s, nil
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
