package payments_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/tipjar/internal/db"
	"github.com/sudo-init-do/tipjar/internal/gateway"
	"github.com/sudo-init-do/tipjar/internal/payments"
)

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("db connection: %v", err)
	}
	t.Cleanup(pool.Close)

	db.Conn = pool
	db.EnsureSchema()

	if _, err := pool.Exec(ctx, "TRUNCATE supporter_payments, withdrawals, wishlists, creators CASCADE"); err != nil {
		t.Fatalf("reset db: %v", err)
	}
	return pool
}

func seedCreator(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	id := uuid.New().String()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO creators (id, display_name, email, phone) VALUES ($1, 'Test Creator', 'creator@example.com', '+2348010000000')`, id)
	if err != nil {
		t.Fatalf("seed creator: %v", err)
	}
	return id
}

func seedWishlist(t *testing.T, pool *pgxpool.Pool, creatorID string, price int64) string {
	t.Helper()
	id := uuid.New().String()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO wishlists (id, creator_id, title, price, amount_funded, duration_days, expires_at)
         VALUES ($1, $2, 'Goal', $3, 0, 30, NOW() + INTERVAL '30 days')`,
		id, creatorID, price)
	if err != nil {
		t.Fatalf("seed wishlist: %v", err)
	}
	return id
}

func seedPendingPledge(t *testing.T, pool *pgxpool.Pool, creatorID, wishlistID string, amount int64) (id, reference string) {
	t.Helper()
	id = uuid.New().String()
	reference = "gw-" + id
	_, err := pool.Exec(context.Background(),
		`INSERT INTO supporter_payments (id, creator_id, wishlist_id, amount, kind, status, supporter_name, supporter_contact, external_reference)
         VALUES ($1, $2, $3, $4, 'wishlist_pledge', 'pending', 'Ada', '+2348020000000', $5)`,
		id, creatorID, wishlistID, amount, reference)
	if err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return id, reference
}

func wishlistFunded(t *testing.T, pool *pgxpool.Pool, id string) int64 {
	t.Helper()
	var funded int64
	if err := pool.QueryRow(context.Background(),
		`SELECT amount_funded FROM wishlists WHERE id = $1`, id).Scan(&funded); err != nil {
		t.Fatalf("read wishlist: %v", err)
	}
	return funded
}

func paymentStatus(t *testing.T, pool *pgxpool.Pool, id string) string {
	t.Helper()
	var status string
	if err := pool.QueryRow(context.Background(),
		`SELECT status FROM supporter_payments WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("read payment: %v", err)
	}
	return status
}

func TestReconcileCompletesPledgeAndFundsWishlist(t *testing.T) {
	pool := setupDB(t)
	creator := seedCreator(t, pool)
	wl := seedWishlist(t, pool, creator, 5000)
	payID, ref := seedPendingPledge(t, pool, creator, wl, 2000)

	res, err := payments.Reconcile(context.Background(), pool, payments.Notification{
		ExternalReference: ref,
		Status:            gateway.StatusCompleted,
		Amount:            2000,
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !res.Transitioned {
		t.Fatal("expected transition on first delivery")
	}
	if got := paymentStatus(t, pool, payID); got != payments.StatusCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
	if got := wishlistFunded(t, pool, wl); got != 2000 {
		t.Fatalf("expected amount_funded 2000, got %d", got)
	}
}

func TestReconcileRepeatDeliveryIsNoOp(t *testing.T) {
	pool := setupDB(t)
	creator := seedCreator(t, pool)
	wl := seedWishlist(t, pool, creator, 5000)
	_, ref := seedPendingPledge(t, pool, creator, wl, 2000)

	n := payments.Notification{ExternalReference: ref, Status: gateway.StatusCompleted, Amount: 2000}
	if _, err := payments.Reconcile(context.Background(), pool, n); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}

	res, err := payments.Reconcile(context.Background(), pool, n)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if res.Transitioned {
		t.Fatal("repeat delivery must not transition again")
	}
	if got := wishlistFunded(t, pool, wl); got != 2000 {
		t.Fatalf("amount_funded double-counted: got %d", got)
	}
}

func TestReconcileUnknownReference(t *testing.T) {
	pool := setupDB(t)

	_, err := payments.Reconcile(context.Background(), pool, payments.Notification{
		ExternalReference: "gw-no-such-reference",
		Status:            gateway.StatusCompleted,
	})
	if !errors.Is(err, payments.ErrUnknownReference) {
		t.Fatalf("expected ErrUnknownReference, got %v", err)
	}
}

func TestReconcilePendingStatusLeavesPaymentPending(t *testing.T) {
	pool := setupDB(t)
	creator := seedCreator(t, pool)
	wl := seedWishlist(t, pool, creator, 5000)
	payID, ref := seedPendingPledge(t, pool, creator, wl, 2000)

	res, err := payments.Reconcile(context.Background(), pool, payments.Notification{
		ExternalReference: ref,
		Status:            gateway.StatusPending,
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Transitioned {
		t.Fatal("pending status must not transition")
	}
	if got := paymentStatus(t, pool, payID); got != payments.StatusPending {
		t.Fatalf("expected pending, got %s", got)
	}
}

func TestReconcileFailureNeverFundsWishlist(t *testing.T) {
	pool := setupDB(t)
	creator := seedCreator(t, pool)
	wl := seedWishlist(t, pool, creator, 5000)
	payID, ref := seedPendingPledge(t, pool, creator, wl, 2000)

	res, err := payments.Reconcile(context.Background(), pool, payments.Notification{
		ExternalReference: ref,
		Status:            gateway.StatusFailed,
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !res.Transitioned {
		t.Fatal("expected transition to failed")
	}
	if got := paymentStatus(t, pool, payID); got != payments.StatusFailed {
		t.Fatalf("expected failed, got %s", got)
	}
	if got := wishlistFunded(t, pool, wl); got != 0 {
		t.Fatalf("failed payment must not fund wishlist, got %d", got)
	}

	// A later "completed" for the same reference cannot resurrect it.
	res, err = payments.Reconcile(context.Background(), pool, payments.Notification{
		ExternalReference: ref,
		Status:            gateway.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("reconcile after terminal: %v", err)
	}
	if res.Transitioned {
		t.Fatal("terminal payment must not transition again")
	}
	if got := paymentStatus(t, pool, payID); got != payments.StatusFailed {
		t.Fatalf("expected failed to stick, got %s", got)
	}
}

func TestReconcileOvershootRecordsFullAmount(t *testing.T) {
	pool := setupDB(t)
	creator := seedCreator(t, pool)
	wl := seedWishlist(t, pool, creator, 1000)
	_, ref := seedPendingPledge(t, pool, creator, wl, 1500)

	if _, err := payments.Reconcile(context.Background(), pool, payments.Notification{
		ExternalReference: ref,
		Status:            gateway.StatusCompleted,
	}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := wishlistFunded(t, pool, wl); got != 1500 {
		t.Fatalf("expected overshoot recorded as 1500, got %d", got)
	}
}
