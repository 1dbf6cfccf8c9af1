package helpers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gti/jenkins-acceptance/internal/models"
	"github.com/gti/jenkins-acceptance/internal/results"
)

// Ledger reads back what the results recorder stored for a run.
type Ledger struct {
	rec *results.Recorder
}

func NewLedger(rec *results.Recorder) *Ledger {
	return &Ledger{rec: rec}
}

// Summary returns total and failed outcome counts of the current run.
func (l *Ledger) Summary(t testing.TB) (total, failed int) {
	t.Helper()
	total, failed, err := l.rec.Summary(context.Background(), l.rec.RunID())
	require.NoError(t, err)
	return total, failed
}

// Failures lists failed outcomes of run with their attachments.
func (l *Ledger) Failures(t testing.TB, run uuid.UUID) []models.OutcomeWithAttachments {
	t.Helper()
	out, err := l.rec.Failures(context.Background(), run)
	require.NoError(t, err)
	return out
}
