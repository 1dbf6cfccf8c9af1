package database

import (
	"context"
	"fmt"

	"github.com/phuslu/log"
)

// RunMigrations creates the results schema.
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Info().Msg("Running database migrations...")

	schema := `
	CREATE SCHEMA IF NOT EXISTS acceptance_results;

	-- One row per suite execution
	CREATE TABLE IF NOT EXISTS acceptance_results.runs (
		id UUID PRIMARY KEY,
		jenkins_url TEXT NOT NULL,
		jenkins_version TEXT,
		driver TEXT NOT NULL,
		started_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		finished_at TIMESTAMP WITH TIME ZONE
	);

	CREATE TABLE IF NOT EXISTS acceptance_results.test_outcomes (
		id SERIAL PRIMARY KEY,
		run_id UUID REFERENCES acceptance_results.runs(id) ON DELETE CASCADE,
		test_name TEXT NOT NULL,
		passed BOOLEAN NOT NULL,
		page_url TEXT,
		recorded_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	-- Files written by the failure diagnostics
	CREATE TABLE IF NOT EXISTS acceptance_results.attachments (
		outcome_id INTEGER REFERENCES acceptance_results.test_outcomes(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		PRIMARY KEY (outcome_id, path)
	);

	CREATE INDEX IF NOT EXISTS idx_test_outcomes_run ON acceptance_results.test_outcomes(run_id);
	CREATE INDEX IF NOT EXISTS idx_test_outcomes_failed ON acceptance_results.test_outcomes(run_id) WHERE NOT passed;
	`

	_, err := db.Pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Msg("Database migrations completed successfully")
	return nil
}
