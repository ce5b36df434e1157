package ledger

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tipjar/internal/db"
)

// Balance returns the authenticated creator's derived balances
func Balance(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	b, err := ComputeBalances(c.Request().Context(), db.Conn, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not compute balances"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"creator_id":      uid,
		"available":       b.Available,
		"locked":          b.Locked,
		"withdrawn_total": b.WithdrawnTotal,
	})
}
