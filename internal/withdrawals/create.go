package withdrawals

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/tipjar/internal/db"
	"github.com/sudo-init-do/tipjar/internal/gateway"
	"github.com/sudo-init-do/tipjar/internal/ledger"
)

var gw *gateway.Client

func gatewayClient() *gateway.Client {
	if gw == nil {
		gw = gateway.NewFromEnv()
	}
	return gw
}

// SetGatewayClient overrides the shared client for tests.
func SetGatewayClient(c *gateway.Client) {
	gw = c
}

// CreateInput is everything needed to open a withdrawal.
type CreateInput struct {
	CreatorID       string
	Amount          int64
	Method          string
	Destination     string
	DestinationBank string
}

func (in CreateInput) validate() error {
	if in.Amount <= 0 {
		return ErrInvalidAmount
	}
	if in.Method != MethodMobileMoney && in.Method != MethodBank {
		return ErrInvalidMethod
	}
	if in.Destination == "" {
		return ErrMissingDestination
	}
	if in.Method == MethodBank && in.DestinationBank == "" {
		return ErrMissingBank
	}
	return nil
}

// feeFor computes the provider fee from PAYOUT_FEE_PERCENT. Percent
// arithmetic goes through decimal so the rounding of minor units is
// deterministic; the ledger itself never leaves int64.
func feeFor(amount int64) int64 {
	pct := os.Getenv("PAYOUT_FEE_PERCENT")
	if pct == "" {
		return 0
	}
	p, err := decimal.NewFromString(pct)
	if err != nil || p.IsNegative() {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(p).Div(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Create opens a PENDING withdrawal bounded by the creator's available
// balance. The balance check and the insert share one transaction, with
// the creator row locked FOR UPDATE, so two concurrent requests cannot
// both read a stale balance and jointly over-withdraw. The payout
// submission to the gateway happens after commit; see submitPayout.
func Create(ctx context.Context, pool *pgxpool.Pool, gw *gateway.Client, in CreateInput) (Withdrawal, error) {
	if err := in.validate(); err != nil {
		return Withdrawal{}, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return Withdrawal{}, err
	}
	defer tx.Rollback(ctx)

	// Per-creator serialization: the creator row is the lock target, so
	// unrelated creators proceed in parallel.
	var lockedID string
	err = tx.QueryRow(ctx, `SELECT id FROM creators WHERE id = $1 FOR UPDATE`, in.CreatorID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Withdrawal{}, ErrCreatorNotFound
		}
		return Withdrawal{}, err
	}

	balances, err := ledger.ComputeBalances(ctx, tx, in.CreatorID)
	if err != nil {
		return Withdrawal{}, err
	}
	if in.Amount > balances.Available {
		return Withdrawal{}, ErrInsufficientBalance
	}

	fee := feeFor(in.Amount)
	if fee >= in.Amount {
		return Withdrawal{}, ErrInvalidAmount
	}

	now := time.Now()
	w := Withdrawal{
		ID:              uuid.New().String(),
		CreatorID:       in.CreatorID,
		Amount:          in.Amount,
		NetAmount:       in.Amount - fee,
		Method:          in.Method,
		Destination:     in.Destination,
		DestinationBank: in.DestinationBank,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO withdrawals
            (id, creator_id, amount, net_amount, method, destination, destination_bank, status, payout_reference, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, 'PENDING', '', $8, $8)`,
		w.ID, w.CreatorID, w.Amount, w.NetAmount, w.Method, w.Destination, w.DestinationBank, now,
	)
	if err != nil {
		return Withdrawal{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Withdrawal{}, err
	}

	// Gateway call is outside the transaction; if it fails the
	// withdrawal stays PENDING without a reference and Advance will
	// resubmit with the same idempotency key.
	if ref, err := submitPayout(ctx, pool, gw, w); err != nil {
		log.Printf("[withdraw] payout submit failed for %s (will retry on advance): %v", w.ID, err)
	} else {
		w.PayoutReference = ref
	}

	return w, nil
}

// submitPayout sends the disbursement to the gateway, keyed on the
// withdrawal id, and stores the returned reference.
func submitPayout(ctx context.Context, pool *pgxpool.Pool, gw *gateway.Client, w Withdrawal) (string, error) {
	res, err := gw.CreatePayout(ctx, gateway.PayoutRequest{
		Amount:         w.NetAmount,
		Currency:       payoutCurrency(),
		PayeeContact:   w.Destination,
		BankCode:       w.DestinationBank,
		IdempotencyKey: w.ID,
	})
	if err != nil {
		return "", err
	}
	_, err = pool.Exec(ctx,
		`UPDATE withdrawals SET payout_reference = $1, updated_at = NOW() WHERE id = $2 AND payout_reference = ''`,
		res.Reference, w.ID,
	)
	if err != nil {
		return "", err
	}
	return res.Reference, nil
}

func payoutCurrency() string {
	if c := os.Getenv("PLATFORM_CURRENCY"); c != "" {
		return c
	}
	return "NGN"
}

type initWithdrawalRequest struct {
	Amount          int64  `json:"amount"`
	Method          string `json:"method"`
	Destination     string `json:"destination"`
	DestinationBank string `json:"destination_bank,omitempty"`
}

// InitWithdrawal handles POST /creator/withdrawals
func InitWithdrawal(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized or invalid user"})
	}

	var req initWithdrawalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	w, err := Create(c.Request().Context(), db.Conn, gatewayClient(), CreateInput{
		CreatorID:       uid,
		Amount:          req.Amount,
		Method:          req.Method,
		Destination:     req.Destination,
		DestinationBank: req.DestinationBank,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidMethod),
			errors.Is(err, ErrMissingDestination), errors.Is(err, ErrMissingBank):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, ErrInsufficientBalance):
			return c.JSON(http.StatusConflict, echo.Map{"error": "insufficient balance"})
		case errors.Is(err, ErrCreatorNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "creator not found"})
		default:
			log.Printf("[withdraw] create failed for %s: %v", uid, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create withdrawal"})
		}
	}

	return c.JSON(http.StatusCreated, w)
}
