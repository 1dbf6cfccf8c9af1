package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/gti/jenkins-acceptance/internal/models"
	"github.com/gti/jenkins-acceptance/internal/service"
)

// SeedHandler lets tests arrange the mock server's state over HTTP.
type SeedHandler struct {
	jenkins  *service.JenkinsService
	validate *validator.Validate
}

func NewSeedHandler(jenkins *service.JenkinsService) *SeedHandler {
	return &SeedHandler{
		jenkins:  jenkins,
		validate: validator.New(),
	}
}

// bind decodes and validates the request body into req
func (h *SeedHandler) bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrAgentNotFound), errors.Is(err, service.ErrViewNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAgentExists), errors.Is(err, service.ErrViewExists):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// CreateAgent adds an agent
func (h *SeedHandler) CreateAgent(c echo.Context) error {
	var req models.CreateAgentRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	if err := h.jenkins.CreateAgent(req); err != nil {
		return c.JSON(statusOf(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"name":    req.Name,
	})
}

// RecordBuild adds a build to an agent's history
func (h *SeedHandler) RecordBuild(c echo.Context) error {
	var req models.RecordBuildRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	number, err := h.jenkins.RecordBuild(c.Param("name"), req.Job)
	if err != nil {
		return c.JSON(statusOf(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"number":  number,
	})
}

// AppendLog adds a line to an agent's log
func (h *SeedHandler) AppendLog(c echo.Context) error {
	var req models.AppendLogRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	if err := h.jenkins.AppendLog(c.Param("name"), req.Line); err != nil {
		return c.JSON(statusOf(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}

// CreateJob adds a job
func (h *SeedHandler) CreateJob(c echo.Context) error {
	var req models.CreateJobRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	if err := h.jenkins.CreateJob(req.Name); err != nil {
		return c.JSON(statusOf(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"success": true})
}

// Reset drops all seeded state
func (h *SeedHandler) Reset(c echo.Context) error {
	h.jenkins.Reset()
	return c.NoContent(http.StatusNoContent)
}
