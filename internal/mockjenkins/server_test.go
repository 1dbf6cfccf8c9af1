package mockjenkins

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gti/jenkins-acceptance/internal/jenkinsapi"
)

const token = "s3cret"

func startServer(t *testing.T, version string) (*Server, *jenkinsapi.Client) {
	t.Helper()
	srv, err := New(Options{Version: version, Token: token})
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	api := jenkinsapi.NewClient(ts.URL)
	api.SetHeader("x-api-key", token)
	return srv, api
}

func page(t *testing.T, api *jenkinsapi.Client, path string) string {
	t.Helper()
	resp, err := api.Call(context.Background(), http.MethodGet, path, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.String())
	return resp.String()
}

func seedAgent(t *testing.T, api *jenkinsapi.Client, body map[string]any) {
	t.Helper()
	resp, err := api.Call(context.Background(), http.MethodPost, "mock/agents", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, resp.String())
}

func TestRootAPIAndVersion(t *testing.T) {
	_, api := startServer(t, "2.426.3")
	ctx := context.Background()

	v, err := api.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.426.3", v.Original())

	root, err := api.Get(ctx, "api/json")
	require.NoError(t, err)
	assert.Equal(t, "NORMAL", root.Get("mode").String())
	assert.Equal(t, int64(2), root.Get("numExecutors").Int())
	assert.Equal(t, "all", root.Get("views.0.name").String())
}

func TestSeedRoutesRequireToken(t *testing.T) {
	_, api := startServer(t, "2.426.3")
	anon := jenkinsapi.NewClient(api.BaseURL())
	ctx := context.Background()

	resp, err := anon.Call(ctx, http.MethodPost, "mock/jobs", map[string]any{"name": "j1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	anon.SetBasicAuth("admin", token)
	resp, err = anon.Call(ctx, http.MethodPost, "mock/jobs", map[string]any{"name": "j1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = api.Call(ctx, http.MethodPost, "mock/agents", map[string]any{"executors": 1})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAgentLifecycle(t *testing.T) {
	_, api := startServer(t, "2.426.3")
	ctx := context.Background()
	seedAgent(t, api, map[string]any{"name": "a1", "executors": 3, "connected": true, "log": "starting\nconnected"})

	state, err := api.Get(ctx, "computer/a1/api/json")
	require.NoError(t, err)
	assert.False(t, state.Get("offline").Bool())
	assert.Len(t, state.Get("executors").Array(), 3)

	body := page(t, api, "computer/a1/")
	assert.Contains(t, body, "Mark this node temporarily offline")
	assert.Contains(t, body, ">Disconnect</a>")
	assert.Contains(t, body, "Delete Agent")
	assert.NotContains(t, body, "Launch agent")

	assert.Contains(t, page(t, api, "computer/a1/markOffline"), `name="offlineMessage"`)
	_, err = api.PostForm(ctx, "computer/a1/toggleOffline", url.Values{"offlineMessage": {"lunch"}})
	require.NoError(t, err)

	state, err = api.Get(ctx, "computer/a1/api/json")
	require.NoError(t, err)
	assert.True(t, state.Get("offline").Bool())
	assert.True(t, state.Get("temporarilyOffline").Bool())
	assert.Equal(t, "lunch", state.Get("offlineCauseReason").String())
	assert.Contains(t, page(t, api, "computer/a1/"), "Bring this node back online")

	_, err = api.PostForm(ctx, "computer/a1/toggleOffline", nil)
	require.NoError(t, err)
	_, err = api.PostForm(ctx, "computer/a1/doDisconnect", url.Values{"offlineMessage": {"maintenance"}})
	require.NoError(t, err)

	state, err = api.Get(ctx, "computer/a1/api/json")
	require.NoError(t, err)
	assert.True(t, state.Get("offline").Bool())
	assert.Contains(t, page(t, api, "computer/a1/"), "Launch agent")

	_, err = api.PostForm(ctx, "computer/a1/launchSlaveAgent", nil)
	require.NoError(t, err)
	state, err = api.Get(ctx, "computer/a1/api/json")
	require.NoError(t, err)
	assert.False(t, state.Get("offline").Bool())

	log := page(t, api, "computer/a1/log")
	assert.Contains(t, log, `<pre id="out"><pre>starting`)
	assert.Contains(t, log, "Disconnected: maintenance")
	assert.Contains(t, log, "Agent successfully connected and online")

	_, err = api.PostForm(ctx, "computer/a1/doDelete", nil)
	require.NoError(t, err)
	_, err = api.Get(ctx, "computer/a1/api/json")
	var se *jenkinsapi.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestAgentBuildHistory(t *testing.T) {
	_, api := startServer(t, "2.426.3")
	ctx := context.Background()
	seedAgent(t, api, map[string]any{"name": "a1", "connected": true})

	for _, job := range []string{"j1", "j2", "j1"} {
		resp, err := api.Call(ctx, http.MethodPost, "mock/agents/a1/builds", map[string]any{"job": job})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	body := page(t, api, "computer/a1/builds")
	assert.Contains(t, body, `id="projectStatus"`)
	newest := strings.Index(body, "j1 #2")
	middle := strings.Index(body, "j2 #1")
	oldest := strings.Index(body, "j1 #1")
	assert.True(t, newest >= 0 && newest < middle && middle < oldest, "builds should be listed newest first: %s", body)

	resp, err := api.Call(ctx, http.MethodPost, "mock/agents/nope/builds", map[string]any{"job": "j1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLegacyCaptions(t *testing.T) {
	_, api := startServer(t, "1.651.3")
	seedAgent(t, api, map[string]any{"name": "old"})

	body := page(t, api, "computer/old/")
	assert.Contains(t, body, "Launch slave agent")
	assert.Contains(t, body, "Delete Slave")
	assert.Contains(t, page(t, api, "newView"), ">OK</button>")
	assert.Contains(t, page(t, api, "configure"), "Not a non-negative number")
}

func TestCreateAndConfigureListView(t *testing.T) {
	_, api := startServer(t, "2.426.3")
	ctx := context.Background()
	for _, job := range []string{"frontend", "backend"} {
		resp, err := api.Call(ctx, http.MethodPost, "mock/jobs", map[string]any{"name": job})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	form := page(t, api, "newView")
	assert.Contains(t, form, `value="hudson.model.ListView"> List View</label>`)
	assert.Contains(t, form, ">Create</button>")

	resp, err := api.PostForm(ctx, "createView", url.Values{"name": {"lv"}, "mode": {"hudson.model.ListView"}})
	require.NoError(t, err)
	assert.Contains(t, resp.String(), `path="/useincluderegex/includeRegex"`)
	assert.Contains(t, resp.String(), `data-check-url="checkIncludeRegex"`)

	_, err = api.PostForm(ctx, "createView", url.Values{"name": {"lv"}, "mode": {"hudson.model.ListView"}})
	var se *jenkinsapi.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)

	view, err := api.Get(ctx, "view/lv/api/json")
	require.NoError(t, err)
	assert.Empty(t, view.Get("jobs").Array())

	_, err = api.PostForm(ctx, "view/lv/configSubmit", url.Values{"useincluderegex": {"on"}, "includeRegex": {"front.*"}})
	require.NoError(t, err)
	view, err = api.Get(ctx, "view/lv/api/json")
	require.NoError(t, err)
	assert.Equal(t, "frontend", view.Get("jobs.#.name").Array()[0].String())
	assert.Len(t, view.Get("jobs").Array(), 1)

	_, err = api.PostForm(ctx, "view/lv/configSubmit", url.Values{"useincluderegex": {"on"}, "includeRegex": {"["}})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
}

func TestCheckIncludeRegex(t *testing.T) {
	_, api := startServer(t, "2.426.3")

	assert.Equal(t, "", page(t, api, "view/all/checkIncludeRegex?value="+url.QueryEscape(".*")))
	assert.True(t, strings.HasPrefix(page(t, api, "view/all/checkIncludeRegex?value="+url.QueryEscape("[")), `<div class="error">`))
	assert.True(t, strings.HasPrefix(page(t, api, "view/all/checkIncludeRegex?value="), `<div class="warning">`))
}

func TestGlobalConfiguration(t *testing.T) {
	srv, api := startServer(t, "2.426.3")
	ctx := context.Background()

	body := page(t, api, "configure")
	assert.Contains(t, body, `<form method="post" action="/configSubmit" name="config" data-dirty-check>`)
	assert.Contains(t, body, `path="/jenkins-model-MasterBuildConfiguration/numExecutors"`)
	assert.Contains(t, body, `data-validate-message="Not a non-negative integer"`)
	assert.Contains(t, body, "beforeunload")

	_, err := api.PostForm(ctx, "configSubmit", url.Values{"_.numExecutors": {"16"}})
	require.NoError(t, err)
	assert.Equal(t, 16, srv.Jenkins.NumExecutors())

	_, err = api.PostForm(ctx, "configSubmit", url.Values{"_.numExecutors": {"-16"}})
	var se *jenkinsapi.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, 16, srv.Jenkins.NumExecutors())
}

func TestReset(t *testing.T) {
	srv, api := startServer(t, "2.426.3")
	seedAgent(t, api, map[string]any{"name": "a1"})

	resp, err := api.Call(context.Background(), http.MethodPost, "mock/reset", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, srv.Jenkins.Agents())
}

func TestInvalidVersion(t *testing.T) {
	_, err := New(Options{Version: "not-a-version"})
	require.Error(t, err)
}
