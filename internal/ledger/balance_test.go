package ledger_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/tipjar/internal/db"
	"github.com/sudo-init-do/tipjar/internal/ledger"
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

func seedWishlist(t *testing.T, pool *pgxpool.Pool, creatorID string, price, funded int64, expired bool) string {
	t.Helper()
	id := uuid.New().String()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO wishlists (id, creator_id, title, price, amount_funded, duration_days, is_expired, expires_at)
         VALUES ($1, $2, 'Goal', $3, $4, 30, $5, NOW() + INTERVAL '30 days')`,
		id, creatorID, price, funded, expired)
	if err != nil {
		t.Fatalf("seed wishlist: %v", err)
	}
	return id
}

func seedCompletedPayment(t *testing.T, pool *pgxpool.Pool, creatorID, kind string, wishlistID string, amount int64) string {
	t.Helper()
	id := uuid.New().String()
	var wl any
	if wishlistID != "" {
		wl = wishlistID
	}
	_, err := pool.Exec(context.Background(),
		`INSERT INTO supporter_payments (id, creator_id, wishlist_id, amount, kind, status, external_reference, completed_at)
         VALUES ($1, $2, $3, $4, $5, 'completed', $1, NOW())`,
		id, creatorID, wl, amount, kind)
	if err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return id
}

func TestBalancesDirectAndFulfilledPledge(t *testing.T) {
	pool := setupDB(t)
	creator := seedCreator(t, pool)

	// One direct support of 5,000 and one pledge of 3,000 toward a
	// 3,000-price (fulfilled) wishlist.
	seedCompletedPayment(t, pool, creator, "direct_support", "", 5000)
	wl := seedWishlist(t, pool, creator, 3000, 3000, false)
	seedCompletedPayment(t, pool, creator, "wishlist_pledge", wl, 3000)

	b, err := ledger.ComputeBalances(context.Background(), pool, creator)
	if err != nil {
		t.Fatalf("compute balances: %v", err)
	}
	if b.Available != 8000 {
		t.Fatalf("expected available 8000, got %d", b.Available)
	}
	if b.Locked != 0 {
		t.Fatalf("expected locked 0, got %d", b.Locked)
	}
}

func TestBalancesUnfulfilledPledgeIsLocked(t *testing.T) {
	pool := setupDB(t)
	creator := seedCreator(t, pool)

	seedCompletedPayment(t, pool, creator, "direct_support", "", 5000)
	fulfilled := seedWishlist(t, pool, creator, 3000, 3000, false)
	seedCompletedPayment(t, pool, creator, "wishlist_pledge", fulfilled, 3000)

	open := seedWishlist(t, pool, creator, 10000, 2000, false)
	seedCompletedPayment(t, pool, creator, "wishlist_pledge", open, 2000)

	b, err := ledger.ComputeBalances(context.Background(), pool, creator)
	if err != nil {
		t.Fatalf("compute balances: %v", err)
	}
	if b.Available != 8000 {
		t.Fatalf("expected available 8000, got %d", b.Available)
	}
	if b.Locked != 2000 {
		t.Fatalf("expected locked 2000, got %d", b.Locked)
	}
}

func TestBalancesIgnorePendingAndFailedPayments(t *testing.T) {
	pool := setupDB(t)
	creator := seedCreator(t, pool)

	seedCompletedPayment(t, pool, creator, "direct_support", "", 1000)
	for _, status := range []string{"pending", "failed"} {
		id := uuid.New().String()
		_, err := pool.Exec(context.Background(),
			`INSERT INTO supporter_payments (id, creator_id, amount, kind, status, external_reference)
             VALUES ($1, $2, 9999, 'direct_support', $3, $1)`,
			id, creator, status)
		if err != nil {
			t.Fatalf("seed payment: %v", err)
		}
	}

	b, err := ledger.ComputeBalances(context.Background(), pool, creator)
	if err != nil {
		t.Fatalf("compute balances: %v", err)
	}
	if b.Available != 1000 || b.Locked != 0 {
		t.Fatalf("expected available 1000 locked 0, got %+v", b)
	}
}

func TestBalancesCountNonCancelledWithdrawals(t *testing.T) {
	pool := setupDB(t)
	creator := seedCreator(t, pool)

	seedCompletedPayment(t, pool, creator, "direct_support", "", 10000)

	for _, w := range []struct {
		amount int64
		status string
	}{
		{3000, "COMPLETED"},
		{2000, "PENDING"},
		{4000, "CANCELLED"},
	} {
		_, err := pool.Exec(context.Background(),
			`INSERT INTO withdrawals (id, creator_id, amount, net_amount, method, destination, status)
             VALUES ($1, $2, $3, $3, 'mobile_money', '+2348010000000', $4)`,
			uuid.New().String(), creator, w.amount, w.status)
		if err != nil {
			t.Fatalf("seed withdrawal: %v", err)
		}
	}

	b, err := ledger.ComputeBalances(context.Background(), pool, creator)
	if err != nil {
		t.Fatalf("compute balances: %v", err)
	}
	// 10000 - 3000 completed - 2000 still pending; the cancelled one
	// returns to the balance.
	if b.Available != 5000 {
		t.Fatalf("expected available 5000, got %d", b.Available)
	}
	if b.WithdrawnTotal != 3000 {
		t.Fatalf("expected withdrawn_total 3000, got %d", b.WithdrawnTotal)
	}
}

func TestConservationLaw(t *testing.T) {
	pool := setupDB(t)
	creator := seedCreator(t, pool)

	seedCompletedPayment(t, pool, creator, "direct_support", "", 5000)
	fulfilled := seedWishlist(t, pool, creator, 3000, 3000, false)
	seedCompletedPayment(t, pool, creator, "wishlist_pledge", fulfilled, 3000)
	open := seedWishlist(t, pool, creator, 10000, 2000, false)
	seedCompletedPayment(t, pool, creator, "wishlist_pledge", open, 2000)
	expired := seedWishlist(t, pool, creator, 8000, 1500, true)
	seedCompletedPayment(t, pool, creator, "wishlist_pledge", expired, 1500)

	_, err := pool.Exec(context.Background(),
		`INSERT INTO withdrawals (id, creator_id, amount, net_amount, method, destination, status)
         VALUES ($1, $2, 4000, 4000, 'mobile_money', '+2348010000000', 'COMPLETED')`,
		uuid.New().String(), creator)
	if err != nil {
		t.Fatalf("seed withdrawal: %v", err)
	}

	b, err := ledger.ComputeBalances(context.Background(), pool, creator)
	if err != nil {
		t.Fatalf("compute balances: %v", err)
	}

	var completedSum, withdrawnSum int64
	if err := pool.QueryRow(context.Background(),
		`SELECT COALESCE(SUM(amount), 0) FROM supporter_payments WHERE creator_id = $1 AND status = 'completed'`,
		creator).Scan(&completedSum); err != nil {
		t.Fatalf("sum payments: %v", err)
	}
	if err := pool.QueryRow(context.Background(),
		`SELECT COALESCE(SUM(amount), 0) FROM withdrawals WHERE creator_id = $1 AND status <> 'CANCELLED'`,
		creator).Scan(&withdrawnSum); err != nil {
		t.Fatalf("sum withdrawals: %v", err)
	}

	if b.Available+b.Locked != completedSum-withdrawnSum {
		t.Fatalf("conservation violated: available=%d locked=%d completed=%d withdrawn=%d",
			b.Available, b.Locked, completedSum, withdrawnSum)
	}
}
