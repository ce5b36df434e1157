package withdrawals

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tipjar/internal/alerts"
	"github.com/sudo-init-do/tipjar/internal/db"
	"github.com/sudo-init-do/tipjar/internal/gateway"
)

// Advance moves a PENDING withdrawal forward by polling the gateway.
// Terminal withdrawals return unchanged without a gateway call. The
// returned bool is true only when this call performed the
// PENDING -> COMPLETED transition, which gates the completion SMS:
// the UPDATE is constrained to status='PENDING', so of two concurrent
// advances exactly one sees RowsAffected()==1.
func Advance(ctx context.Context, pool *pgxpool.Pool, gw *gateway.Client, id string) (Withdrawal, bool, error) {
	w, err := getByID(ctx, pool, id)
	if err != nil {
		return Withdrawal{}, false, err
	}
	if w.terminal() {
		return w, false, nil
	}

	// A payout that never reached the gateway is resubmitted under the
	// same idempotency key before we can poll it.
	if w.PayoutReference == "" {
		ref, err := submitPayout(ctx, pool, gw, w)
		if err != nil {
			return Withdrawal{}, false, err
		}
		w.PayoutReference = ref
	}

	st, err := gw.GetStatus(ctx, w.PayoutReference)
	if err != nil {
		// Prior state is untouched; the next poll retries.
		return Withdrawal{}, false, err
	}

	switch st.Status {
	case gateway.StatusCompleted:
		ct, err := pool.Exec(ctx,
			`UPDATE withdrawals SET status = 'COMPLETED', updated_at = $1 WHERE id = $2 AND status = 'PENDING'`,
			time.Now(), id,
		)
		if err != nil {
			return Withdrawal{}, false, err
		}
		w, err = getByID(ctx, pool, id)
		if err != nil {
			return Withdrawal{}, false, err
		}
		return w, ct.RowsAffected() == 1, nil
	case gateway.StatusFailed:
		if _, err := pool.Exec(ctx,
			`UPDATE withdrawals SET status = 'CANCELLED', updated_at = $1 WHERE id = $2 AND status = 'PENDING'`,
			time.Now(), id,
		); err != nil {
			return Withdrawal{}, false, err
		}
		w, err = getByID(ctx, pool, id)
		if err != nil {
			return Withdrawal{}, false, err
		}
		return w, false, nil
	default:
		// Still processing; caller retries later.
		return w, false, nil
	}
}

func getByID(ctx context.Context, pool *pgxpool.Pool, id string) (Withdrawal, error) {
	var w Withdrawal
	err := pool.QueryRow(ctx, `
        SELECT id, creator_id, amount, net_amount, method, destination, destination_bank,
               status, payout_reference, created_at, updated_at
        FROM withdrawals
        WHERE id = $1`, id,
	).Scan(&w.ID, &w.CreatorID, &w.Amount, &w.NetAmount, &w.Method, &w.Destination,
		&w.DestinationBank, &w.Status, &w.PayoutReference, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Withdrawal{}, ErrNotFound
		}
		return Withdrawal{}, err
	}
	return w, nil
}

// notifyCompleted sends the payout SMS. Failures are logged and
// swallowed; the status transition already committed.
func notifyCompleted(ctx context.Context, w Withdrawal) {
	var phone string
	err := db.Conn.QueryRow(ctx, `SELECT phone FROM creators WHERE id = $1`, w.CreatorID).Scan(&phone)
	if err != nil || phone == "" {
		log.Printf("[notify] no creator phone for withdrawal %s: %v", w.ID, err)
		return
	}
	if err := alerts.EnqueueWithdrawalSMS(w.ID, w.CreatorID, phone, w.NetAmount); err != nil {
		log.Printf("[notify] withdrawal SMS enqueue failed for %s: %v", w.ID, err)
	}
}

// GetWithdrawal handles GET /creator/withdrawals/:id. Reading a
// withdrawal's status triggers an advance-poll, so clients see the
// freshest gateway state without a separate endpoint.
func GetWithdrawal(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized or invalid user"})
	}
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid withdrawal id"})
	}

	ctx := c.Request().Context()

	owned, err := getByID(ctx, db.Conn, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "withdrawal not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch withdrawal"})
	}
	if owned.CreatorID != uid {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "withdrawal not found"})
	}

	w, transitioned, err := Advance(ctx, db.Conn, gatewayClient(), id)
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			log.Printf("[withdraw] advance poll failed for %s: %v", id, err)
			// Serve the last known local state rather than an error.
			return c.JSON(http.StatusOK, owned)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not advance withdrawal"})
	}

	if transitioned {
		notifyCompleted(ctx, w)
	}

	return c.JSON(http.StatusOK, w)
}

// ListCreatorWithdrawals handles GET /creator/withdrawals
func ListCreatorWithdrawals(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized or invalid user"})
	}

	rows, err := db.Conn.Query(c.Request().Context(), `
        SELECT id, creator_id, amount, net_amount, method, destination, destination_bank,
               status, payout_reference, created_at, updated_at
        FROM withdrawals
        WHERE creator_id = $1
        ORDER BY created_at DESC`, uid,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch withdrawals"})
	}
	defer rows.Close()

	var out []Withdrawal
	for rows.Next() {
		var w Withdrawal
		if err := rows.Scan(&w.ID, &w.CreatorID, &w.Amount, &w.NetAmount, &w.Method, &w.Destination,
			&w.DestinationBank, &w.Status, &w.PayoutReference, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "scan error"})
		}
		out = append(out, w)
	}

	return c.JSON(http.StatusOK, out)
}
