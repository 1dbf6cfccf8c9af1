// Package results stores test outcomes of a suite run in Postgres so failures
// and their diagnostics files can be listed after the run.
package results

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/gti/jenkins-acceptance/internal/database"
	"github.com/gti/jenkins-acceptance/internal/models"
	"github.com/gti/jenkins-acceptance/internal/repository"
)

var ErrNoRun = errors.New("no run started")

type Recorder struct {
	db       *database.DB
	runs     *repository.RunRepository
	outcomes *repository.OutcomeRepository

	mu  sync.Mutex
	run *models.Run
}

// Open connects to databaseURL and migrates the results schema.
func Open(ctx context.Context, databaseURL string) (*Recorder, error) {
	db, err := database.NewWithContext(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return NewRecorder(db), nil
}

func NewRecorder(db *database.DB) *Recorder {
	return &Recorder{
		db:       db,
		runs:     repository.NewRunRepository(db.Pool),
		outcomes: repository.NewOutcomeRepository(db.Pool),
	}
}

// StartRun opens a new run; later outcomes are attached to it.
func (r *Recorder) StartRun(ctx context.Context, jenkinsURL, version, driver string) (uuid.UUID, error) {
	run := &models.Run{
		ID:         uuid.New(),
		JenkinsURL: jenkinsURL,
		Driver:     driver,
	}
	if version != "" {
		run.JenkinsVersion = &version
	}
	if err := r.runs.Create(ctx, run); err != nil {
		return uuid.Nil, err
	}

	r.mu.Lock()
	r.run = run
	r.mu.Unlock()

	log.Info().Str("run", run.ID.String()).Str("jenkins", jenkinsURL).Str("driver", driver).Msg("results run started")
	return run.ID, nil
}

// RunID is uuid.Nil before StartRun.
func (r *Recorder) RunID() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run == nil {
		return uuid.Nil
	}
	return r.run.ID
}

func (r *Recorder) RecordOutcome(ctx context.Context, test string, passed bool, url string, attachments []string) error {
	runID := r.RunID()
	if runID == uuid.Nil {
		return ErrNoRun
	}

	outcome := &models.TestOutcome{RunID: runID, TestName: test, Passed: passed}
	if url != "" {
		outcome.PageURL = &url
	}
	if _, err := r.outcomes.Record(ctx, outcome, attachments); err != nil {
		return fmt.Errorf("failed to record %s: %w", test, err)
	}
	log.Debug().Str("test", test).Bool("passed", passed).Int("attachments", len(attachments)).Msg("outcome recorded")
	return nil
}

func (r *Recorder) Failures(ctx context.Context, runID uuid.UUID) ([]models.OutcomeWithAttachments, error) {
	return r.outcomes.Failures(ctx, runID)
}

// Summary returns the outcome counts of runID.
func (r *Recorder) Summary(ctx context.Context, runID uuid.UUID) (total, failed int, err error) {
	return r.outcomes.Count(ctx, runID)
}

// Finish stamps the current run as finished.
func (r *Recorder) Finish(ctx context.Context) error {
	runID := r.RunID()
	if runID == uuid.Nil {
		return ErrNoRun
	}
	return r.runs.Finish(ctx, runID)
}

func (r *Recorder) Close() {
	r.db.Close()
}
