package payments

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tipjar/internal/db"
)

// ListCreatorPayments returns the authenticated creator's income
// history, newest first
func ListCreatorPayments(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized or invalid user"})
	}

	rows, err := db.Conn.Query(c.Request().Context(),
		`SELECT id, wishlist_id, amount, kind, supporter_name, status, external_reference, created_at, completed_at
         FROM supporter_payments
         WHERE creator_id = $1
         ORDER BY created_at DESC`,
		uid,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch payments"})
	}
	defer rows.Close()

	var out []SupporterPayment
	for rows.Next() {
		var p SupporterPayment
		var wishlistID *string
		var completedAt *time.Time
		if err := rows.Scan(&p.ID, &wishlistID, &p.Amount, &p.Kind, &p.SupporterName,
			&p.Status, &p.ExternalReference, &p.CreatedAt, &completedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "scan error"})
		}
		p.CreatorID = uid
		if wishlistID != nil {
			p.WishlistID = *wishlistID
		}
		p.CompletedAt = completedAt
		out = append(out, p)
	}

	return c.JSON(http.StatusOK, out)
}
