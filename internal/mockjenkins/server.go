// Package mockjenkins assembles a small stand-in for the CI server: the pages
// and JSON endpoints the page objects drive, plus routes to seed its state.
package mockjenkins

import (
	"fmt"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/phuslu/log"

	"github.com/gti/jenkins-acceptance/internal/handler"
	"github.com/gti/jenkins-acceptance/internal/middleware"
	"github.com/gti/jenkins-acceptance/internal/service"
)

type Options struct {
	// Version is advertised in the X-Jenkins header and picks the captions
	// and validation messages of that release.
	Version string
	// Token guards the /mock seeding routes. Empty leaves them open.
	Token string
}

// Server is the echo instance with the state it serves.
type Server struct {
	*echo.Echo
	Jenkins *service.JenkinsService
}

func New(opts Options) (*Server, error) {
	jenkins, err := service.NewJenkinsService(opts.Version)
	if err != nil {
		return nil, err
	}
	templates, err := handler.LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	ui := handler.NewJenkinsHandler(jenkins, templates)
	seed := handler.NewSeedHandler(jenkins)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			log.Debug().Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Msg("request")
			return nil
		},
	}))
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.VersionHeader(jenkins.Version()))

	e.GET("/", ui.Dashboard)
	e.GET("/api/json", ui.RootAPI)
	e.GET("/configure", ui.Configure)
	e.POST("/configSubmit", ui.SubmitConfigure)

	e.GET("/computer/:name/", ui.Computer)
	e.GET("/computer/:name/api/json", ui.ComputerAPI)
	e.GET("/computer/:name/log", ui.ComputerLog)
	e.GET("/computer/:name/builds", ui.ComputerBuilds)
	e.GET("/computer/:name/markOffline", ui.MarkOfflinePage)
	e.POST("/computer/:name/toggleOffline", ui.ToggleOffline)
	e.GET("/computer/:name/disconnect", ui.DisconnectPage)
	e.POST("/computer/:name/doDisconnect", ui.Disconnect)
	e.POST("/computer/:name/launchSlaveAgent", ui.Launch)
	e.GET("/computer/:name/delete", ui.DeletePage)
	e.POST("/computer/:name/doDelete", ui.Delete)

	e.GET("/newView", ui.NewView)
	e.POST("/createView", ui.CreateView)
	e.GET("/view/:name/", ui.View)
	e.GET("/view/:name/api/json", ui.ViewAPI)
	e.GET("/view/:name/configure", ui.ConfigureView)
	e.GET("/view/:name/checkIncludeRegex", ui.CheckIncludeRegex)
	e.POST("/view/:name/configSubmit", ui.SubmitView)

	mock := e.Group("/mock")
	mock.Use(middleware.TokenAuth(opts.Token))
	mock.POST("/agents", seed.CreateAgent)
	mock.POST("/agents/:name/builds", seed.RecordBuild)
	mock.POST("/agents/:name/log", seed.AppendLog)
	mock.POST("/jobs", seed.CreateJob)
	mock.POST("/reset", seed.Reset)

	return &Server{Echo: e, Jenkins: jenkins}, nil
}
