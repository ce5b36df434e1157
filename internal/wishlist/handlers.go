package wishlist

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tipjar/internal/db"
)

type createWishlistRequest struct {
	Title        string `json:"title"`
	Price        int64  `json:"price"`
	DurationDays int    `json:"duration_days"`
}

// CreateWishlist handles POST /creator/wishlists
func CreateWishlist(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized or invalid user"})
	}

	var req createWishlistRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}
	if req.Price <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price must be greater than zero"})
	}
	if req.DurationDays <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration_days must be greater than zero"})
	}

	now := time.Now()
	w := Wishlist{
		ID:           uuid.New().String(),
		CreatorID:    uid,
		Title:        req.Title,
		Price:        req.Price,
		DurationDays: req.DurationDays,
		CreatedAt:    now,
		ExpiresAt:    now.AddDate(0, 0, req.DurationDays),
	}

	_, err := db.Conn.Exec(c.Request().Context(),
		`INSERT INTO wishlists (id, creator_id, title, price, amount_funded, duration_days, is_expired, created_at, expires_at)
         VALUES ($1, $2, $3, $4, 0, $5, FALSE, $6, $7)`,
		w.ID, w.CreatorID, w.Title, w.Price, w.DurationDays, w.CreatedAt, w.ExpiresAt,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create wishlist"})
	}

	return c.JSON(http.StatusCreated, w)
}

// ListCreatorWishlists handles GET /creator/wishlists (own goals,
// including expired ones)
func ListCreatorWishlists(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized or invalid user"})
	}
	return listForCreator(c, uid, false)
}

// ListPublicWishlists handles GET /creators/:id/wishlists, the goals a
// supporter can still pledge toward.
func ListPublicWishlists(c echo.Context) error {
	creatorID := c.Param("id")
	if creatorID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid creator id"})
	}
	return listForCreator(c, creatorID, true)
}

func listForCreator(c echo.Context, creatorID string, openOnly bool) error {
	q := `SELECT id, creator_id, title, price, amount_funded, duration_days,
                 amount_funded >= price AS is_fulfilled, is_expired, created_at, expires_at
          FROM wishlists
          WHERE creator_id = $1`
	if openOnly {
		q += ` AND NOT is_expired AND expires_at > NOW()`
	}
	q += ` ORDER BY created_at DESC`

	rows, err := db.Conn.Query(c.Request().Context(), q, creatorID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch wishlists"})
	}
	defer rows.Close()

	var out []Wishlist
	for rows.Next() {
		var w Wishlist
		if err := rows.Scan(&w.ID, &w.CreatorID, &w.Title, &w.Price, &w.AmountFunded,
			&w.DurationDays, &w.IsFulfilled, &w.IsExpired, &w.CreatedAt, &w.ExpiresAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "scan error"})
		}
		out = append(out, w)
	}

	return c.JSON(http.StatusOK, out)
}
