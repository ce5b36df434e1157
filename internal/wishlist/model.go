package wishlist

import "time"

// Wishlist is a creator's funding goal. IsFulfilled is derived from
// amount_funded >= price at read time and never stored.
type Wishlist struct {
	ID           string    `json:"id"`
	CreatorID    string    `json:"creator_id"`
	Title        string    `json:"title"`
	Price        int64     `json:"price"`
	AmountFunded int64     `json:"amount_funded"`
	DurationDays int       `json:"duration_days"`
	IsFulfilled  bool      `json:"is_fulfilled"`
	IsExpired    bool      `json:"is_expired"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}
