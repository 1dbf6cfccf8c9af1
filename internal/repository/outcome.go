package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gti/jenkins-acceptance/internal/models"
)

var ErrRunNotFound = errors.New("run not found")

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// Create inserts a run and fills in its start time.
func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO acceptance_results.runs (id, jenkins_url, jenkins_version, driver)
		 VALUES ($1, $2, $3, $4)
		 RETURNING started_at`,
		run.ID, run.JenkinsURL, run.JenkinsVersion, run.Driver).Scan(&run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// Finish stamps the run's end time.
func (r *RunRepository) Finish(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE acceptance_results.runs SET finished_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	run := &models.Run{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, jenkins_url, jenkins_version, driver, started_at, finished_at
		 FROM acceptance_results.runs WHERE id = $1`, id).Scan(
		&run.ID, &run.JenkinsURL, &run.JenkinsVersion, &run.Driver, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

type OutcomeRepository struct {
	pool *pgxpool.Pool
}

func NewOutcomeRepository(pool *pgxpool.Pool) *OutcomeRepository {
	return &OutcomeRepository{pool: pool}
}

// Record stores an outcome and its attachments in one transaction.
func (r *OutcomeRepository) Record(ctx context.Context, outcome *models.TestOutcome, attachments []string) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO acceptance_results.test_outcomes (run_id, test_name, passed, page_url)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, recorded_at`,
		outcome.RunID, outcome.TestName, outcome.Passed, outcome.PageURL).Scan(&outcome.ID, &outcome.RecordedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert outcome: %w", err)
	}

	for _, path := range attachments {
		_, err = tx.Exec(ctx,
			`INSERT INTO acceptance_results.attachments (outcome_id, path)
			 VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			outcome.ID, path)
		if err != nil {
			return 0, fmt.Errorf("failed to insert attachment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return outcome.ID, nil
}

// Failures lists the failed outcomes of a run with their attachments, in
// the order they were recorded.
func (r *OutcomeRepository) Failures(ctx context.Context, runID uuid.UUID) ([]models.OutcomeWithAttachments, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.run_id, o.test_name, o.passed, o.page_url, o.recorded_at, a.path
		 FROM acceptance_results.test_outcomes o
		 LEFT JOIN acceptance_results.attachments a ON o.id = a.outcome_id
		 WHERE o.run_id = $1 AND NOT o.passed
		 ORDER BY o.id, a.path`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get failures: %w", err)
	}
	defer rows.Close()

	byID := make(map[int]*models.OutcomeWithAttachments)
	var order []int

	for rows.Next() {
		var (
			o    models.TestOutcome
			path *string
		)
		if err := rows.Scan(&o.ID, &o.RunID, &o.TestName, &o.Passed, &o.PageURL, &o.RecordedAt, &path); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}

		entry, ok := byID[o.ID]
		if !ok {
			entry = &models.OutcomeWithAttachments{Outcome: o}
			byID[o.ID] = entry
			order = append(order, o.ID)
		}
		if path != nil {
			entry.Attachments = append(entry.Attachments, models.Attachment{OutcomeID: o.ID, Path: *path})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate failures: %w", err)
	}

	result := make([]models.OutcomeWithAttachments, 0, len(order))
	for _, id := range order {
		result = append(result, *byID[id])
	}
	return result, nil
}

// Count returns how many outcomes a run recorded, and how many failed.
func (r *OutcomeRepository) Count(ctx context.Context, runID uuid.UUID) (total, failed int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT passed)
		 FROM acceptance_results.test_outcomes WHERE run_id = $1`, runID).Scan(&total, &failed)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count outcomes: %w", err)
	}
	return total, failed, nil
}
