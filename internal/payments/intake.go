package payments

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tipjar/internal/db"
	"github.com/sudo-init-do/tipjar/internal/gateway"
)

var gw *gateway.Client

// gatewayClient returns the shared provider client, built lazily from
// env the first time it is needed.
func gatewayClient() *gateway.Client {
	if gw == nil {
		gw = gateway.NewFromEnv()
	}
	return gw
}

// SetGatewayClient overrides the shared client (tests point it at a
// local server).
func SetGatewayClient(c *gateway.Client) {
	gw = c
}

func currency() string {
	if c := os.Getenv("PLATFORM_CURRENCY"); c != "" {
		return c
	}
	return "NGN"
}

type initPaymentRequest struct {
	Amount           int64  `json:"amount"`
	Kind             string `json:"kind"`
	WishlistID       string `json:"wishlist_id,omitempty"`
	SupporterName    string `json:"supporter_name"`
	SupporterContact string `json:"supporter_contact"`
}

// InitPayment starts a supporter payment: the supporter's mobile-money
// account is charged by the gateway, and a pending SupporterPayment
// awaits reconciliation. Public endpoint, no auth.
func InitPayment(c echo.Context) error {
	creatorID := c.Param("creator_id")
	if creatorID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid creator id"})
	}

	var req initPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be greater than zero"})
	}
	if req.Kind != KindDirectSupport && req.Kind != KindWishlistPledge {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "kind must be direct_support or wishlist_pledge"})
	}
	if req.SupporterContact == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "supporter_contact is required"})
	}
	if (req.Kind == KindWishlistPledge) != (req.WishlistID != "") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "wishlist_id is required exactly for wishlist pledges"})
	}

	ctx := c.Request().Context()

	var exists bool
	if err := db.Conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM creators WHERE id = $1)`, creatorID,
	).Scan(&exists); err != nil || !exists {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "creator not found"})
	}

	if req.Kind == KindWishlistPledge {
		var open bool
		err := db.Conn.QueryRow(ctx,
			`SELECT NOT is_expired AND expires_at > NOW() FROM wishlists WHERE id = $1 AND creator_id = $2`,
			req.WishlistID, creatorID,
		).Scan(&open)
		if err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "wishlist not found"})
		}
		if !open {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "wishlist is no longer accepting pledges"})
		}
	}

	paymentID := uuid.New().String()

	// Persist first, charge second: the gateway must never move money
	// without a durable row waiting to be reconciled. The row starts
	// with its own id as external_reference (unique placeholder) and
	// gets the provider's reference attached after the charge.
	var wishlistID any
	if req.WishlistID != "" {
		wishlistID = req.WishlistID
	}
	_, err := db.Conn.Exec(ctx,
		`INSERT INTO supporter_payments
            (id, creator_id, wishlist_id, amount, kind, supporter_name, supporter_contact, status, external_reference, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $1, $8)`,
		paymentID, creatorID, wishlistID, req.Amount, req.Kind,
		req.SupporterName, req.SupporterContact, time.Now(),
	)
	if err != nil {
		log.Printf("[intake] could not persist payment %s: %v", paymentID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not record payment"})
	}

	res, err := gatewayClient().CreateCollection(ctx, gateway.CollectionRequest{
		Amount:         req.Amount,
		Currency:       currency(),
		PayerContact:   req.SupporterContact,
		IdempotencyKey: paymentID,
	})
	if err != nil {
		log.Printf("[intake] collection init failed for payment %s: %v", paymentID, err)
		// No charge was accepted; the row is closed out so it never
		// dangles as pending.
		if _, uerr := db.Conn.Exec(ctx,
			`UPDATE supporter_payments SET status = 'failed' WHERE id = $1 AND status = 'pending'`,
			paymentID,
		); uerr != nil {
			log.Printf("[intake] could not mark payment %s failed: %v", paymentID, uerr)
		}
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unavailable, try again"})
	}

	if _, err := db.Conn.Exec(ctx,
		`UPDATE supporter_payments SET external_reference = $1 WHERE id = $2`,
		res.Reference, paymentID,
	); err != nil {
		log.Printf("[intake] could not attach reference %s to payment %s: %v", res.Reference, paymentID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not record payment"})
	}

	// The provider reference stays server-side; completion is always
	// verified against the provider, never asserted by a caller.
	return c.JSON(http.StatusOK, echo.Map{
		"payment_id": paymentID,
		"status":     StatusPending,
		"message":    "Approve the charge on your phone to complete the payment",
	})
}
