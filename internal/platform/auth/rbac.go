package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Dashboard role ids as stored on users.
const (
	RoleAdmin = 1
	RoleStaff = 3
)

// RequireRole rejects requests whose role id is not one of roleIDs with 401.
// Sub-role checks happen in the workflow, which knows the command.
func RequireRole(roleIDs ...int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			have := RoleIDFromContext(c.Request().Context())
			for _, want := range roleIDs {
				if have == want {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid role")
		}
	}
}
