package wishlist

import (
	"context"
	"log"
	"net/http"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tipjar/internal/db"
)

// SweepResult summarizes one expiration pass.
type SweepResult struct {
	ExpiredCount     int      `json:"expired_count"`
	ReleasedAmount   int64    `json:"released_amount"`
	AffectedCreators []string `json:"affected_creators"`
}

// ProcessExpired marks every unfulfilled wishlist past its deadline as
// expired, in one transaction. Marking is the whole release mechanism:
// the balance calculator counts completed pledges to expired wishlists
// as available, so the pledged funds move from locked to available the
// moment this commits. Pledge rows themselves are never rewritten.
//
// Re-running immediately is a no-op: already-expired goals are filtered
// out by the selection, so the second pass reports zero.
func ProcessExpired(ctx context.Context, pool *pgxpool.Pool) (SweepResult, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
        SELECT id, creator_id, amount_funded
        FROM wishlists
        WHERE expires_at <= NOW()
          AND NOT is_expired
          AND amount_funded < price
        FOR UPDATE`)
	if err != nil {
		return SweepResult{}, err
	}

	type target struct {
		id        string
		creatorID string
		funded    int64
	}
	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.id, &t.creatorID, &t.funded); err != nil {
			rows.Close()
			return SweepResult{}, err
		}
		targets = append(targets, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return SweepResult{}, err
	}

	res := SweepResult{AffectedCreators: []string{}}
	creators := make(map[string]bool)
	for _, t := range targets {
		if _, err := tx.Exec(ctx,
			`UPDATE wishlists SET is_expired = TRUE WHERE id = $1`, t.id,
		); err != nil {
			return SweepResult{}, err
		}
		res.ExpiredCount++
		res.ReleasedAmount += t.funded
		creators[t.creatorID] = true
	}

	if err := tx.Commit(ctx); err != nil {
		return SweepResult{}, err
	}

	for id := range creators {
		res.AffectedCreators = append(res.AffectedCreators, id)
	}
	sort.Strings(res.AffectedCreators)

	if res.ExpiredCount > 0 {
		log.Printf("[sweep] expired %d wishlists, released %d across %d creators",
			res.ExpiredCount, res.ReleasedAmount, len(res.AffectedCreators))
	}
	return res, nil
}

// RunExpirationSweep handles POST /admin/wishlists/expire
func RunExpirationSweep(c echo.Context) error {
	res, err := ProcessExpired(c.Request().Context(), db.Conn)
	if err != nil {
		log.Printf("[sweep] expiration sweep failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, res)
}
