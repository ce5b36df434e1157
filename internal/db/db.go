package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Conn *pgxpool.Pool

// Init connects to Postgres and ensures the tipjar schema
func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_HOST"),
			os.Getenv("DB_PORT"),
			os.Getenv("DB_NAME"),
		)
	}

	var err error
	Conn, err = pgxpool.New(context.Background(), dsn)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}

	if err = Conn.Ping(context.Background()); err != nil {
		log.Fatalf("Unable to ping database: %v\n", err)
	}

	log.Println("Connected to Postgres successfully")

	EnsureSchema()
}

// EnsureSchema creates or patches the ledger tables. Every helper is
// idempotent so the service can start against a fresh or an existing
// database.
func EnsureSchema() {
	ensureCreatorsTable()
	ensureWishlistsTable()
	ensureSupporterPaymentsTable()
	ensureWithdrawalsTable()
}

// ensureCreatorsTable creates the creators table. The creator row doubles
// as the per-creator lock target for withdrawal serialization.
func ensureCreatorsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS creators (
            id UUID PRIMARY KEY,
            display_name TEXT NOT NULL,
            email TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            role TEXT NOT NULL DEFAULT 'creator',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		log.Printf("failed to create creators table: %v", err)
	}
}

// ensureWishlistsTable creates the wishlists (funding goal) table.
// is_fulfilled is derived (amount_funded >= price), never stored.
func ensureWishlistsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS wishlists (
            id UUID PRIMARY KEY,
            creator_id UUID NOT NULL REFERENCES creators(id) ON DELETE CASCADE,
            title TEXT NOT NULL,
            price BIGINT NOT NULL CHECK (price > 0),
            amount_funded BIGINT NOT NULL DEFAULT 0,
            duration_days INTEGER NOT NULL CHECK (duration_days > 0),
            is_expired BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            expires_at TIMESTAMP WITH TIME ZONE NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_wishlists_creator ON wishlists(creator_id);
        CREATE INDEX IF NOT EXISTS idx_wishlists_expiry ON wishlists(expires_at) WHERE NOT is_expired;
    `)
	if err != nil {
		log.Printf("failed to create wishlists table: %v", err)
	}
}

// ensureSupporterPaymentsTable creates supporter_payments. The unique
// external_reference is the reconciliation idempotency key.
func ensureSupporterPaymentsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS supporter_payments (
            id UUID PRIMARY KEY,
            creator_id UUID NOT NULL REFERENCES creators(id) ON DELETE CASCADE,
            wishlist_id UUID NULL REFERENCES wishlists(id) ON DELETE SET NULL,
            amount BIGINT NOT NULL CHECK (amount > 0),
            kind TEXT NOT NULL CHECK (kind IN ('direct_support', 'wishlist_pledge')),
            supporter_name TEXT NOT NULL DEFAULT '',
            supporter_contact TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed', 'failed')),
            external_reference TEXT NOT NULL UNIQUE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            completed_at TIMESTAMP WITH TIME ZONE NULL
        );
        CREATE INDEX IF NOT EXISTS idx_payments_creator ON supporter_payments(creator_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_payments_wishlist ON supporter_payments(wishlist_id) WHERE wishlist_id IS NOT NULL;
    `)
	if err != nil {
		log.Printf("failed to create supporter_payments table: %v", err)
	}
}

// ensureWithdrawalsTable creates withdrawals
func ensureWithdrawalsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS withdrawals (
            id UUID PRIMARY KEY,
            creator_id UUID NOT NULL REFERENCES creators(id) ON DELETE CASCADE,
            amount BIGINT NOT NULL CHECK (amount > 0),
            net_amount BIGINT NOT NULL CHECK (net_amount > 0),
            method TEXT NOT NULL CHECK (method IN ('mobile_money', 'bank')),
            destination TEXT NOT NULL,
            destination_bank TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'COMPLETED', 'CANCELLED')),
            payout_reference TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_withdrawals_creator ON withdrawals(creator_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_withdrawals_status ON withdrawals(status);
    `)
	if err != nil {
		log.Printf("failed to create withdrawals table: %v", err)
	}
}
