package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AdminGuard restricts the /admin surface (platform stats, withdrawal
// oversight, manual expiration sweeps) to tokens carrying the admin
// role. Runs after JWTMiddleware has populated the role.
func AdminGuard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		role, ok := c.Get("role").(string)
		if !ok || role != "admin" {
			return c.JSON(http.StatusForbidden, echo.Map{
				"error": "admin role required",
			})
		}
		return next(c)
	}
}
