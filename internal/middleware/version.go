package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/gti/jenkins-acceptance/internal/jenkinsapi"
)

// VersionHeader stamps every response with the server version, the way the
// real server advertises itself.
func VersionHeader(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(jenkinsapi.VersionHeader, version)
			return next(c)
		}
	}
}
