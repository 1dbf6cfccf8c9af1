package handler

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/phuslu/log"

	"github.com/gti/jenkins-acceptance/internal/service"
)

// JenkinsHandler renders the HTML pages and JSON API of the mock server.
type JenkinsHandler struct {
	jenkins   *service.JenkinsService
	templates *template.Template
}

func NewJenkinsHandler(jenkins *service.JenkinsService, templates *template.Template) *JenkinsHandler {
	return &JenkinsHandler{
		jenkins:   jenkins,
		templates: templates,
	}
}

func (h *JenkinsHandler) render(c echo.Context, status int, name string, data map[string]interface{}) error {
	data["Version"] = h.jenkins.Version()
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)
	return h.templates.ExecuteTemplate(c.Response().Writer, name, data)
}

func (h *JenkinsHandler) renderError(c echo.Context, status int, err error) error {
	return h.render(c, status, "error", map[string]interface{}{
		"Title": "Error",
		"Error": err.Error(),
	})
}

// Dashboard renders the landing page
func (h *JenkinsHandler) Dashboard(c echo.Context) error {
	return h.render(c, http.StatusOK, "dashboard", map[string]interface{}{
		"Title":  "Dashboard",
		"Views":  h.jenkins.Views(),
		"Agents": h.jenkins.Agents(),
	})
}

// RootAPI returns the top-level JSON API
func (h *JenkinsHandler) RootAPI(c echo.Context) error {
	views := make([]map[string]string, 0)
	for _, v := range h.jenkins.Views() {
		views = append(views, map[string]string{
			"name": v.Name,
			"url":  "/view/" + url.PathEscape(v.Name) + "/",
		})
	}
	jobs := make([]map[string]string, 0)
	for _, j := range h.jenkins.Jobs() {
		jobs = append(jobs, map[string]string{"name": j})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"_class":          "hudson.model.Hudson",
		"mode":            "NORMAL",
		"nodeDescription": "the built-in node",
		"numExecutors":    h.jenkins.NumExecutors(),
		"views":           views,
		"jobs":            jobs,
	})
}

func agentURL(name string) string {
	return "/computer/" + url.PathEscape(name) + "/"
}

// Computer renders the agent page
func (h *JenkinsHandler) Computer(c echo.Context) error {
	a, err := h.jenkins.Agent(c.Param("name"))
	if err != nil {
		return h.renderError(c, http.StatusNotFound, err)
	}

	deleteCaption, launchCaption := "Delete Agent", "Launch agent"
	if h.jenkins.LegacyCaptions() {
		deleteCaption, launchCaption = "Delete Slave", "Launch slave agent"
	}
	return h.render(c, http.StatusOK, "computer", map[string]interface{}{
		"Title":         a.Name,
		"Agent":         a,
		"DeleteCaption": deleteCaption,
		"LaunchCaption": launchCaption,
	})
}

// ComputerAPI returns the agent JSON API
func (h *JenkinsHandler) ComputerAPI(c echo.Context) error {
	a, err := h.jenkins.Agent(c.Param("name"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}

	executors := make([]map[string]interface{}, a.Executors)
	for i := range executors {
		executors[i] = map[string]interface{}{"idle": true, "number": i}
	}
	var cause interface{}
	if a.OfflineMessage != "" {
		cause = a.OfflineMessage
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"_class":             "hudson.slaves.SlaveComputer",
		"displayName":        a.Name,
		"offline":            a.Offline(),
		"temporarilyOffline": a.TemporarilyOffline,
		"offlineCauseReason": cause,
		"numExecutors":       a.Executors,
		"executors":          executors,
	})
}

func (h *JenkinsHandler) ComputerLog(c echo.Context) error {
	a, err := h.jenkins.Agent(c.Param("name"))
	if err != nil {
		return h.renderError(c, http.StatusNotFound, err)
	}
	return h.render(c, http.StatusOK, "computer_log", map[string]interface{}{
		"Title": "Log of " + a.Name,
		"Agent": a,
	})
}

func (h *JenkinsHandler) ComputerBuilds(c echo.Context) error {
	builds, err := h.jenkins.BuildHistory(c.Param("name"))
	if err != nil {
		return h.renderError(c, http.StatusNotFound, err)
	}
	return h.render(c, http.StatusOK, "computer_builds", map[string]interface{}{
		"Title":  "Builds on " + c.Param("name"),
		"Builds": builds,
	})
}

// computerForm renders one of the confirmation pages of an agent
func (h *JenkinsHandler) computerForm(c echo.Context, heading, action, submit string, askMessage bool) error {
	a, err := h.jenkins.Agent(c.Param("name"))
	if err != nil {
		return h.renderError(c, http.StatusNotFound, err)
	}
	return h.render(c, http.StatusOK, "computer_form", map[string]interface{}{
		"Title":      a.Name,
		"Heading":    heading,
		"Action":     action,
		"Submit":     submit,
		"AskMessage": askMessage,
	})
}

func (h *JenkinsHandler) MarkOfflinePage(c echo.Context) error {
	return h.computerForm(c, "Mark this node temporarily offline", "toggleOffline", "Mark this node temporarily offline", true)
}

func (h *JenkinsHandler) DisconnectPage(c echo.Context) error {
	return h.computerForm(c, "Are you sure about disconnecting?", "doDisconnect", "Yes", true)
}

func (h *JenkinsHandler) DeletePage(c echo.Context) error {
	return h.computerForm(c, "Are you sure about deleting the agent?", "doDelete", "Yes", false)
}

// agentAction runs fn for the agent in the path and redirects to redirect,
// or to the agent page when redirect is empty
func (h *JenkinsHandler) agentAction(c echo.Context, redirect string, fn func(name string) error) error {
	name := c.Param("name")
	if err := fn(name); err != nil {
		if errors.Is(err, service.ErrAgentNotFound) {
			return h.renderError(c, http.StatusNotFound, err)
		}
		return h.renderError(c, http.StatusInternalServerError, err)
	}
	if redirect == "" {
		redirect = agentURL(name)
	}
	return c.Redirect(http.StatusFound, redirect)
}

func (h *JenkinsHandler) ToggleOffline(c echo.Context) error {
	return h.agentAction(c, "", func(name string) error {
		log.Info().Str("agent", name).Msg("toggle offline")
		return h.jenkins.ToggleOffline(name, c.FormValue("offlineMessage"))
	})
}

func (h *JenkinsHandler) Disconnect(c echo.Context) error {
	return h.agentAction(c, "", func(name string) error {
		return h.jenkins.Disconnect(name, c.FormValue("offlineMessage"))
	})
}

func (h *JenkinsHandler) Launch(c echo.Context) error {
	return h.agentAction(c, "", h.jenkins.Launch)
}

func (h *JenkinsHandler) Delete(c echo.Context) error {
	return h.agentAction(c, "/", h.jenkins.DeleteAgent)
}

func (h *JenkinsHandler) createCaption() string {
	if h.jenkins.LegacyCaptions() {
		return "OK"
	}
	return "Create"
}

// NewView renders the view creation form
func (h *JenkinsHandler) NewView(c echo.Context) error {
	return h.render(c, http.StatusOK, "new_view", map[string]interface{}{
		"Title":         "New view",
		"CreateCaption": h.createCaption(),
	})
}

// CreateView handles the view creation form and redirects to its configuration
func (h *JenkinsHandler) CreateView(c echo.Context) error {
	name := c.FormValue("name")
	if err := h.jenkins.CreateView(name, c.FormValue("mode")); err != nil {
		return h.render(c, http.StatusBadRequest, "new_view", map[string]interface{}{
			"Title":         "New view",
			"CreateCaption": h.createCaption(),
			"Error":         err.Error(),
		})
	}
	log.Info().Str("view", name).Msg("view created")
	return c.Redirect(http.StatusFound, "/view/"+url.PathEscape(name)+"/configure")
}

func (h *JenkinsHandler) View(c echo.Context) error {
	v, err := h.jenkins.View(c.Param("name"))
	if err != nil {
		return h.renderError(c, http.StatusNotFound, err)
	}
	jobs, err := h.jenkins.ViewJobs(v.Name)
	if err != nil {
		return h.renderError(c, http.StatusInternalServerError, err)
	}
	return h.render(c, http.StatusOK, "view", map[string]interface{}{
		"Title": v.Name,
		"View":  v,
		"Jobs":  jobs,
	})
}

func (h *JenkinsHandler) ViewAPI(c echo.Context) error {
	v, err := h.jenkins.View(c.Param("name"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	jobs, err := h.jenkins.ViewJobs(v.Name)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	names := make([]map[string]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, map[string]string{"name": j})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"_class": v.Mode,
		"name":   v.Name,
		"jobs":   names,
	})
}

func (h *JenkinsHandler) ConfigureView(c echo.Context) error {
	v, err := h.jenkins.View(c.Param("name"))
	if err != nil {
		return h.renderError(c, http.StatusNotFound, err)
	}
	return h.render(c, http.StatusOK, "view_configure", map[string]interface{}{
		"Title": "Edit view " + v.Name,
		"View":  v,
	})
}

// CheckIncludeRegex is the ajax validation endpoint of the include regex field
func (h *JenkinsHandler) CheckIncludeRegex(c echo.Context) error {
	return c.HTML(http.StatusOK, h.jenkins.CheckIncludeRegex(c.QueryParam("value")))
}

func (h *JenkinsHandler) SubmitView(c echo.Context) error {
	name := c.Param("name")
	useRegex := c.FormValue("useincluderegex") != ""
	err := h.jenkins.ConfigureView(name, useRegex, c.FormValue("includeRegex"))
	switch {
	case errors.Is(err, service.ErrViewNotFound):
		return h.renderError(c, http.StatusNotFound, err)
	case err != nil:
		return h.renderError(c, http.StatusBadRequest, err)
	}
	return c.Redirect(http.StatusFound, "/view/"+url.PathEscape(name)+"/")
}

// Configure renders the global configuration form
func (h *JenkinsHandler) Configure(c echo.Context) error {
	return h.render(c, http.StatusOK, "configure", map[string]interface{}{
		"Title":            "Configure System",
		"NumExecutors":     h.jenkins.NumExecutors(),
		"ExecutorsMessage": h.jenkins.ExecutorsMessage(),
	})
}

func (h *JenkinsHandler) SubmitConfigure(c echo.Context) error {
	if err := h.jenkins.SetNumExecutors(c.FormValue("_.numExecutors")); err != nil {
		return h.render(c, http.StatusBadRequest, "configure", map[string]interface{}{
			"Title":            "Configure System",
			"NumExecutors":     h.jenkins.NumExecutors(),
			"ExecutorsMessage": h.jenkins.ExecutorsMessage(),
			"Error":            h.jenkins.ExecutorsMessage(),
		})
	}
	return c.Redirect(http.StatusFound, "/")
}
