package db

import (
	"fmt"

	"propsignal/internal/models"
)

// InsertPipelineRun records the start of an orchestrator run.
func (db *DB) InsertPipelineRun(r *models.PipelineRun) error {
	_, err := db.NamedExec(`
		INSERT INTO pipeline_runs (id, stage, started_at, finished_at, fetched, resolved, computed, failed, error)
		VALUES (:id, :stage, :started_at, :finished_at, :fetched, :resolved, :computed, :failed, :error)
	`, r)
	if err != nil {
		return fmt.Errorf("failed to insert pipeline run %s: %w", r.ID, err)
	}
	return nil
}

// UpdatePipelineRun persists stage transitions and counters for a run.
func (db *DB) UpdatePipelineRun(r *models.PipelineRun) error {
	_, err := db.NamedExec(`
		UPDATE pipeline_runs
		SET stage = :stage, finished_at = :finished_at,
			fetched = :fetched, resolved = :resolved, computed = :computed,
			failed = :failed, error = :error
		WHERE id = :id
	`, r)
	if err != nil {
		return fmt.Errorf("failed to update pipeline run %s: %w", r.ID, err)
	}
	return nil
}

// GetLatestFinishedRunBefore returns the most recent successfully finished
// run other than the given one, used as the incremental-fetch watermark.
func (db *DB) GetLatestFinishedRunBefore(excludeID string) (*models.PipelineRun, error) {
	var r models.PipelineRun
	err := db.Get(&r, `
		SELECT * FROM pipeline_runs
		WHERE id != ? AND finished_at IS NOT NULL AND error IS NULL
		ORDER BY finished_at DESC LIMIT 1
	`, excludeID)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetLatestPipelineRun returns the most recent run, or nil when none exist.
func (db *DB) GetLatestPipelineRun() (*models.PipelineRun, error) {
	var r models.PipelineRun
	err := db.Get(&r, `SELECT * FROM pipeline_runs ORDER BY started_at DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
