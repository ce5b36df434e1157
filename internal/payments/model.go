package payments

import "time"

// Payment kinds
const (
	KindDirectSupport  = "direct_support"
	KindWishlistPledge = "wishlist_pledge"
)

// Payment statuses. Transitions are pending -> completed or
// pending -> failed only; both end states are final.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// SupporterPayment records money pledged by a supporter to a creator.
// Once completed the row is immutable.
type SupporterPayment struct {
	ID                string     `json:"id"`
	CreatorID         string     `json:"creator_id"`
	WishlistID        string     `json:"wishlist_id,omitempty"`
	Amount            int64      `json:"amount"`
	Kind              string     `json:"kind"`
	SupporterName     string     `json:"supporter_name,omitempty"`
	SupporterContact  string     `json:"supporter_contact,omitempty"`
	Status            string     `json:"status"`
	ExternalReference string     `json:"external_reference"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}
