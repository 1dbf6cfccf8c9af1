//go:build e2e

package tests

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gti/jenkins-acceptance/e2e/helpers"
	"github.com/gti/jenkins-acceptance/internal/po"
)

func TestListViewIncludeRegexValidation(t *testing.T) {
	ctx := t.Context()
	jenkins := env.NewJenkins(t)
	a := helpers.NewAssert(t)

	view, err := po.CreateView[*po.ListView](ctx, jenkins.Views(), po.ListViewKind, "")
	require.NoError(t, err)
	require.NoError(t, view.Configure(ctx))

	require.NoError(t, view.MatchJobs(ctx, ".*"))
	a.Silent(ctx, view.IncludeRegex)

	require.NoError(t, view.MatchJobs(ctx, "["))
	a.ReportsKind(ctx, view.IncludeRegex, po.KindError)

	require.NoError(t, jenkins.RunThenConfirmAlert(ctx, jenkins.Open, po.AlertTimeout))
}

func TestNumExecutorsValidation(t *testing.T) {
	ctx := t.Context()
	jenkins := env.NewJenkins(t)
	a := helpers.NewAssert(t)

	message := "Not a non-negative number"
	newer, err := jenkins.IsNewerThan(ctx, "2.295")
	require.NoError(t, err)
	if newer {
		message = "Not a non-negative integer"
	}

	config := jenkins.ConfigPage()
	require.NoError(t, config.Configure(ctx))

	require.NoError(t, config.NumExecutors.Set(ctx, 16))
	a.Silent(ctx, config.NumExecutors)

	require.NoError(t, config.NumExecutors.Set(ctx, -16))
	a.Reports(ctx, config.NumExecutors, po.KindError, message)

	require.NoError(t, jenkins.RunThenConfirmAlert(ctx, jenkins.Open, po.AlertTimeout))
}
