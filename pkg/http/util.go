package http

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// ParamOrQuery returns the trimmed path parameter name, falling back to the
// query parameter of the same name.
func ParamOrQuery(c echo.Context, name string) string {
	if v := strings.TrimSpace(c.Param(name)); v != "" {
		return v
	}
	return strings.TrimSpace(c.QueryParam(name))
}
