// Package helpers holds assertions and queries shared by the acceptance tests.
package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gti/jenkins-acceptance/internal/po"
)

// Assert checks page object state, failing the test without stopping it.
//
//	a := helpers.NewAssert(t)
//	a.Silent(ctx, view.IncludeRegex)
//	a.Reports(ctx, view.IncludeRegex, po.KindError, "missing closing ]")
type Assert struct {
	t testing.TB
}

func NewAssert(t testing.TB) *Assert {
	return &Assert{t: t}
}

// Silent asserts the control shows no validation message.
func (a *Assert) Silent(ctx context.Context, c *po.Control) bool {
	a.t.Helper()
	fv, err := c.FormValidation(ctx)
	if !assert.NoError(a.t, err, "reading validation of %s", c) {
		return false
	}
	return assert.True(a.t, fv.Silent(), "%s should be silent, got %s", c, fv)
}

// Reports asserts the control shows the given verdict.
func (a *Assert) Reports(ctx context.Context, c *po.Control, kind po.ValidationKind, message string) bool {
	a.t.Helper()
	fv, err := c.FormValidation(ctx)
	if !assert.NoError(a.t, err, "reading validation of %s", c) {
		return false
	}
	return assert.True(a.t, fv.Reports(kind, message), "%s should report %s: %s, got %s", c, kind, message, fv)
}

// ReportsKind asserts the severity only, for messages that depend on the
// regexp engine's wording.
func (a *Assert) ReportsKind(ctx context.Context, c *po.Control, kind po.ValidationKind) bool {
	a.t.Helper()
	fv, err := c.FormValidation(ctx)
	if !assert.NoError(a.t, err, "reading validation of %s", c) {
		return false
	}
	return assert.Equal(a.t, kind, fv.Kind, "%s: %s", c, fv)
}

// Eventually fails the test now unless m matches subject within timeout.
func Eventually[T any](t testing.TB, ctx context.Context, pl *po.PortingLayer, subject T, m po.Matcher[T], timeout time.Duration) {
	t.Helper()
	require.NoError(t, po.WaitForMatch(ctx, pl, subject, m, timeout), "%v should match: %s", subject, m.Describe())
}
