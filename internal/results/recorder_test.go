package results

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRecorder(t *testing.T) *Recorder {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("acceptance_results"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_pass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rec, err := Open(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(rec.Close)
	return rec
}

func TestRecordOutcomeRequiresRun(t *testing.T) {
	r := &Recorder{}
	assert.Equal(t, uuid.Nil, r.RunID())
	assert.ErrorIs(t, r.RecordOutcome(context.Background(), "TestX", true, "", nil), ErrNoRun)
	assert.ErrorIs(t, r.Finish(context.Background()), ErrNoRun)
}

func TestRecorderRoundTrip(t *testing.T) {
	rec := startRecorder(t)
	ctx := context.Background()

	runID, err := rec.StartRun(ctx, "http://localhost:8080/", "2.426.3", "rod")
	require.NoError(t, err)
	assert.Equal(t, runID, rec.RunID())

	require.NoError(t, rec.RecordOutcome(ctx, "TestPasses", true, "", nil))
	require.NoError(t, rec.RecordOutcome(ctx, "TestFails", false, "http://localhost:8080/configure",
		[]string{"/tmp/d/TestFails/url.txt", "/tmp/d/TestFails/screenshot.png"}))
	require.NoError(t, rec.RecordOutcome(ctx, "TestFailsBare", false, "", nil))

	failures, err := rec.Failures(ctx, runID)
	require.NoError(t, err)
	require.Len(t, failures, 2)

	assert.Equal(t, "TestFails", failures[0].Outcome.TestName)
	require.NotNil(t, failures[0].Outcome.PageURL)
	assert.Equal(t, "http://localhost:8080/configure", *failures[0].Outcome.PageURL)
	require.Len(t, failures[0].Attachments, 2)
	assert.Equal(t, "/tmp/d/TestFails/screenshot.png", failures[0].Attachments[0].Path)

	assert.Equal(t, "TestFailsBare", failures[1].Outcome.TestName)
	assert.Nil(t, failures[1].Outcome.PageURL)
	assert.Empty(t, failures[1].Attachments)

	total, failed, err := rec.Summary(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, failed)

	require.NoError(t, rec.Finish(ctx))
	run, err := rec.runs.GetByID(ctx, runID)
	require.NoError(t, err)
	assert.NotNil(t, run.FinishedAt)
	require.NotNil(t, run.JenkinsVersion)
	assert.Equal(t, "2.426.3", *run.JenkinsVersion)
}
