package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tipjar/internal/db"
)

// GET /admin/stats
func Stats(c echo.Context) error {
	ctx := c.Request().Context()

	var creators, payments, wishlists, withdrawals int
	var collected, paidOut int64

	for _, q := range []struct {
		sql  string
		dest any
	}{
		{`SELECT COUNT(*) FROM creators`, &creators},
		{`SELECT COUNT(*) FROM supporter_payments`, &payments},
		{`SELECT COUNT(*) FROM wishlists`, &wishlists},
		{`SELECT COUNT(*) FROM withdrawals`, &withdrawals},
		{`SELECT COALESCE(SUM(amount), 0) FROM supporter_payments WHERE status = 'completed'`, &collected},
		{`SELECT COALESCE(SUM(amount), 0) FROM withdrawals WHERE status = 'COMPLETED'`, &paidOut},
	} {
		if err := db.Conn.QueryRow(ctx, q.sql).Scan(q.dest); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not compute stats"})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"creators":        creators,
		"payments":        payments,
		"wishlists":       wishlists,
		"withdrawals":     withdrawals,
		"total_collected": collected,
		"total_paid_out":  paidOut,
	})
}
