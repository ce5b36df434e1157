package admin

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tipjar/internal/db"
)

// ListWithdrawals returns all withdrawals, optionally filtered by
// status via ?status=PENDING
func ListWithdrawals(c echo.Context) error {
	status := c.QueryParam("status")

	q := `SELECT id, creator_id, amount, net_amount, method, status, payout_reference, created_at, updated_at
          FROM withdrawals`
	args := []any{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := db.Conn.Query(c.Request().Context(), q, args...)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch withdrawals"})
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		var id, creatorID, method, st, ref string
		var amount, net int64
		var createdAt, updatedAt time.Time

		if err := rows.Scan(&id, &creatorID, &amount, &net, &method, &st, &ref, &createdAt, &updatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to scan withdrawals"})
		}

		out = append(out, map[string]interface{}{
			"id":               id,
			"creator_id":       creatorID,
			"amount":           amount,
			"net_amount":       net,
			"method":           method,
			"status":           st,
			"payout_reference": ref,
			"created_at":       createdAt,
			"updated_at":       updatedAt,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"withdrawals": out})
}
