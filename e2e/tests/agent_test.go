//go:build e2e

package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gti/jenkins-acceptance/e2e/helpers"
	"github.com/gti/jenkins-acceptance/internal/jenkinsapi"
	"github.com/gti/jenkins-acceptance/internal/models"
	"github.com/gti/jenkins-acceptance/internal/po"
)

func TestAgentOfflineAndBack(t *testing.T) {
	env.Reset(t)
	env.SeedAgent(t, models.CreateAgentRequest{Name: "linux-1", Executors: 2, Connected: true})

	ctx := t.Context()
	jenkins := env.NewJenkins(t)
	agent := jenkins.Agent("linux-1")

	require.NoError(t, agent.MarkOffline(ctx, "maintenance"))
	offline, err := agent.IsOffline(ctx)
	require.NoError(t, err)
	assert.True(t, offline)

	require.NoError(t, agent.MarkOnline(ctx))
	require.NoError(t, agent.WaitUntilOnline(ctx))

	n, err := agent.ExecutorCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAgentDisconnectAndLaunch(t *testing.T) {
	env.Reset(t)
	env.SeedAgent(t, models.CreateAgentRequest{Name: "linux-2", Executors: 1, Connected: true})

	ctx := t.Context()
	jenkins := env.NewJenkins(t)
	agent := jenkins.Agent("linux-2")

	require.NoError(t, agent.Disconnect(ctx, "rebooting"))
	offline, err := agent.IsOffline(ctx)
	require.NoError(t, err)
	assert.True(t, offline)

	require.NoError(t, agent.LaunchAgent(ctx))
	require.NoError(t, agent.WaitUntilOnline(ctx))

	text, err := agent.Log(ctx)
	require.NoError(t, err)
	assert.Contains(t, text, "Disconnected: rebooting")
	assert.Contains(t, text, "Agent successfully connected and online")
}

func TestAgentRunsBuildsInOrder(t *testing.T) {
	env.Reset(t)
	env.SeedAgent(t, models.CreateAgentRequest{Name: "linux-3", Executors: 1, Connected: true})
	env.SeedJob(t, "compile")
	env.SeedJob(t, "package")
	assert.Equal(t, 1, env.SeedBuild(t, "linux-3", "compile"))
	assert.Equal(t, 1, env.SeedBuild(t, "linux-3", "package"))

	ctx := t.Context()
	jenkins := env.NewJenkins(t)
	agent := jenkins.Agent("linux-3")

	helpers.Eventually(t, ctx, jenkins.PortingLayer, &agent.Node,
		po.RunBuildsInOrder(jenkins.Job("package"), jenkins.Job("compile")), 30*time.Second)
}

func TestDeleteAgent(t *testing.T) {
	env.Reset(t)
	env.SeedAgent(t, models.CreateAgentRequest{Name: "linux-4", Connected: true})

	ctx := t.Context()
	jenkins := env.NewJenkins(t)
	require.NoError(t, jenkins.Agent("linux-4").Delete(ctx))

	_, err := jenkins.Agent("linux-4").JSON(ctx)
	var se *jenkinsapi.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}
