package db

import (
	"fmt"

	"propsignal/internal/models"
)

// ClearResolutions removes prior resolution records for one source system.
// Resolution is a full recompute per run, never an incremental merge.
func (db *DB) ClearResolutions(sourceSystem string) error {
	_, err := db.Exec(`DELETE FROM resolution_records WHERE source_system = ?`, sourceSystem)
	if err != nil {
		return fmt.Errorf("failed to clear resolutions for %s: %w", sourceSystem, err)
	}
	return nil
}

// InsertResolutions writes a batch of resolution records inside one
// transaction. Unmatched records are inserted too, for coverage auditing.
func (db *DB) InsertResolutions(records []models.ResolutionRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin resolution insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(`
		INSERT INTO resolution_records (source_system, source_key, property_id, match_type, match_confidence, resolved_at)
		VALUES (:source_system, :source_key, :property_id, :match_type, :match_confidence, :resolved_at)
		ON CONFLICT(source_system, source_key) DO UPDATE SET
			property_id = excluded.property_id,
			match_type = excluded.match_type,
			match_confidence = excluded.match_confidence,
			resolved_at = excluded.resolved_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare resolution insert: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		if _, err := stmt.Exec(&records[i]); err != nil {
			return fmt.Errorf("failed to insert resolution %s/%s: %w",
				records[i].SourceSystem, records[i].SourceKey, err)
		}
	}

	return tx.Commit()
}

// ListResolutions returns all resolution records for one source system.
func (db *DB) ListResolutions(sourceSystem string) ([]models.ResolutionRecord, error) {
	var out []models.ResolutionRecord
	err := db.Select(&out, `
		SELECT * FROM resolution_records
		WHERE source_system = ?
		ORDER BY source_key
	`, sourceSystem)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolutions for %s: %w", sourceSystem, err)
	}
	return out, nil
}

// GetResolutionStats returns per-source matched/unmatched counts and the
// measured match rate. This is the primary data-quality metric for operators.
func (db *DB) GetResolutionStats() ([]models.ResolutionStats, error) {
	var stats []models.ResolutionStats
	err := db.Select(&stats, `
		SELECT
			source_system,
			SUM(CASE WHEN property_id IS NOT NULL THEN 1 ELSE 0 END) AS matched,
			SUM(CASE WHEN property_id IS NULL THEN 1 ELSE 0 END) AS unmatched
		FROM resolution_records
		GROUP BY source_system
		ORDER BY source_system
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get resolution stats: %w", err)
	}

	for i := range stats {
		total := stats[i].Matched + stats[i].Unmatched
		if total > 0 {
			stats[i].MatchRate = float64(stats[i].Matched) / float64(total)
		}
	}
	return stats, nil
}
