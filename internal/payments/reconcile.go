package payments

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

// ErrUnknownReference means no local payment matches the external
// reference. Could be a replayed or forged notification; callers log
// and drop it rather than retry.
var ErrUnknownReference = errors.New("unknown external reference")

// Notification is a gateway-confirmed status for one collection,
// arriving via webhook or our own poll. Both paths feed Reconcile with
// identical semantics.
type Notification struct {
	ExternalReference string
	Status            gateway.Status
	Amount            int64 // 0 when the provider omits it
}

// ReconcileResult reports whether this call actually moved the ledger.
type ReconcileResult struct {
	Payment      SupporterPayment
	Transitioned bool
}

// Reconcile completes or fails the matching SupporterPayment at most
// once. Completion and the wishlist amount_funded increment commit as
// one transaction; a repeat delivery for an already-terminal payment is
// a no-op. The pending row is locked FOR UPDATE so two concurrent
// deliveries of the same reference serialize instead of double-counting.
func Reconcile(ctx context.Context, pool *pgxpool.Pool, n Notification) (ReconcileResult, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return ReconcileResult{}, err
	}
	defer tx.Rollback(ctx)

	p, err := lockByReference(ctx, tx, n.ExternalReference)
	if err != nil {
		return ReconcileResult{}, err
	}

	// Terminal rows never change, whatever the gateway says now.
	if p.Status != StatusPending {
		return ReconcileResult{Payment: p}, nil
	}

	// Still processing on the provider side; try again later.
	if n.Status == gateway.StatusPending {
		return ReconcileResult{Payment: p}, nil
	}

	// The local pending row is the authoritative amount. A mismatch is
	// logged for investigation but never rewrites the ledger entry.
	if n.Amount > 0 && n.Amount != p.Amount {
		log.Printf("[reconcile] amount mismatch for %s: local=%d gateway=%d", p.ID, p.Amount, n.Amount)
	}

	if n.Status == gateway.StatusFailed {
		if _, err := tx.Exec(ctx,
			`UPDATE supporter_payments SET status = 'failed' WHERE id = $1 AND status = 'pending'`,
			p.ID,
		); err != nil {
			return ReconcileResult{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return ReconcileResult{}, err
		}
		p.Status = StatusFailed
		return ReconcileResult{Payment: p, Transitioned: true}, nil
	}

	now := time.Now()
	if _, err := tx.Exec(ctx,
		`UPDATE supporter_payments SET status = 'completed', completed_at = $1 WHERE id = $2 AND status = 'pending'`,
		now, p.ID,
	); err != nil {
		return ReconcileResult{}, err
	}

	if p.Kind == KindWishlistPledge && p.WishlistID != "" {
		// Contributions are not split to cap at price; overshoot is
		// recorded as-is.
		if _, err := tx.Exec(ctx,
			`UPDATE wishlists SET amount_funded = amount_funded + $1 WHERE id = $2`,
			p.Amount, p.WishlistID,
		); err != nil {
			return ReconcileResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ReconcileResult{}, err
	}

	p.Status = StatusCompleted
	p.CompletedAt = &now
	return ReconcileResult{Payment: p, Transitioned: true}, nil
}

func lockByReference(ctx context.Context, tx pgx.Tx, reference string) (SupporterPayment, error) {
	var p SupporterPayment
	var wishlistID *string
	var completedAt *time.Time
	err := tx.QueryRow(ctx, `
        SELECT id, creator_id, wishlist_id, amount, kind, supporter_name, supporter_contact,
               status, external_reference, created_at, completed_at
        FROM supporter_payments
        WHERE external_reference = $1
        FOR UPDATE`, reference,
	).Scan(&p.ID, &p.CreatorID, &wishlistID, &p.Amount, &p.Kind, &p.SupporterName,
		&p.SupporterContact, &p.Status, &p.ExternalReference, &p.CreatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SupporterPayment{}, ErrUnknownReference
		}
		return SupporterPayment{}, err
	}
	if wishlistID != nil {
		p.WishlistID = *wishlistID
	}
	p.CompletedAt = completedAt
	return p, nil
}

// notifyCreatorOfSale enqueues the sale email after the ledger commit.
// Dispatch failures are logged only; the funds already landed.
func notifyCreatorOfSale(ctx context.Context, p SupporterPayment) {
	var name, email string
	err := db.Conn.QueryRow(ctx,
		`SELECT display_name, email FROM creators WHERE id = $1`, p.CreatorID,
	).Scan(&name, &email)
	if err != nil || email == "" {
		log.Printf("[notify] no creator email for payment %s: %v", p.ID, err)
		return
	}
	if err := alerts.EnqueueSaleEmail(p.ID, p.CreatorID, name, email, p.SupporterName, p.Amount, p.Kind); err != nil {
		log.Printf("[notify] sale email enqueue failed for payment %s: %v", p.ID, err)
	}
}

// GatewayNotify ingests the provider's webhook. The webhook body is
// only a hint that something happened: anyone who knows a reference can
// POST here, so the status that drives the ledger is always re-read
// from the provider, never taken from the caller. This makes the
// webhook an adapter over the same poll ReconcilePayment does.
func GatewayNotify(c echo.Context) error {
	var req struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
	}
	if err := c.Bind(&req); err != nil || req.Reference == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid notification"})
	}

	ctx := c.Request().Context()

	st, err := gatewayClient().GetStatus(ctx, req.Reference)
	if err != nil {
		log.Printf("[reconcile] could not verify notification for %s: %v", req.Reference, err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "could not verify with provider, retry later"})
	}

	res, err := Reconcile(ctx, db.Conn, Notification{
		ExternalReference: req.Reference,
		Status:            st.Status,
		Amount:            req.Amount,
	})
	if err != nil {
		if errors.Is(err, ErrUnknownReference) {
			log.Printf("[reconcile] dropped notification for unknown reference %s", req.Reference)
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown reference"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not reconcile payment"})
	}

	if res.Transitioned && res.Payment.Status == StatusCompleted {
		notifyCreatorOfSale(ctx, res.Payment)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"payment_id": res.Payment.ID,
		"status":     res.Payment.Status,
	})
}

// ReconcilePayment polls the gateway for one pending payment by local
// id. Used by operators and scheduled recovery when a webhook was lost.
func ReconcilePayment(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment id"})
	}

	ctx := c.Request().Context()

	var reference, status string
	err := db.Conn.QueryRow(ctx,
		`SELECT external_reference, status FROM supporter_payments WHERE id = $1`, id,
	).Scan(&reference, &status)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
	}
	if status != StatusPending {
		return c.JSON(http.StatusOK, echo.Map{"payment_id": id, "status": status})
	}

	st, err := gatewayClient().GetStatus(ctx, reference)
	if err != nil {
		log.Printf("[reconcile] gateway status query failed for %s: %v", id, err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "gateway unavailable, retry later"})
	}

	res, err := Reconcile(ctx, db.Conn, Notification{ExternalReference: reference, Status: st.Status})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not reconcile payment"})
	}

	if res.Transitioned && res.Payment.Status == StatusCompleted {
		notifyCreatorOfSale(ctx, res.Payment)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"payment_id": res.Payment.ID,
		"status":     res.Payment.Status,
	})
}
