package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// computation runs standalone or inside a caller's transaction (the
// withdrawal balance check needs the latter).
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Balances is the derived ledger view for one creator, in minor units.
type Balances struct {
	Available      int64 `json:"available"`
	Locked         int64 `json:"locked"`
	WithdrawnTotal int64 `json:"withdrawn_total"`
}

// ComputeBalances derives the creator's balances by aggregating the
// authoritative payment and withdrawal rows. No running counter is kept
// anywhere. The whole computation is one SQL statement, so it reads a
// single consistent snapshot even when called on a bare pool.
//
// A completed pledge counts as available once its wishlist is fulfilled
// (amount_funded >= price) or has expired; until then it is locked.
// Pending withdrawals already reduce available so a creator cannot
// request the same funds twice while a payout is in flight.
func ComputeBalances(ctx context.Context, q Querier, creatorID string) (Balances, error) {
	var b Balances
	err := q.QueryRow(ctx, `
        SELECT
            COALESCE((SELECT SUM(amount) FROM supporter_payments
                      WHERE creator_id = $1 AND status = 'completed' AND kind = 'direct_support'), 0)
          + COALESCE((SELECT SUM(sp.amount) FROM supporter_payments sp
                      JOIN wishlists w ON w.id = sp.wishlist_id
                      WHERE sp.creator_id = $1 AND sp.status = 'completed' AND sp.kind = 'wishlist_pledge'
                        AND (w.amount_funded >= w.price OR w.is_expired)), 0)
          - COALESCE((SELECT SUM(amount) FROM withdrawals
                      WHERE creator_id = $1 AND status <> 'CANCELLED'), 0) AS available,
            COALESCE((SELECT SUM(sp.amount) FROM supporter_payments sp
                      JOIN wishlists w ON w.id = sp.wishlist_id
                      WHERE sp.creator_id = $1 AND sp.status = 'completed' AND sp.kind = 'wishlist_pledge'
                        AND w.amount_funded < w.price AND NOT w.is_expired), 0) AS locked,
            COALESCE((SELECT SUM(amount) FROM withdrawals
                      WHERE creator_id = $1 AND status = 'COMPLETED'), 0) AS withdrawn_total
    `, creatorID).Scan(&b.Available, &b.Locked, &b.WithdrawnTotal)
	if err != nil {
		return Balances{}, err
	}
	return b, nil
}
