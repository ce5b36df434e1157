package withdrawals

import (
	"errors"
	"time"
)

// Withdrawal statuses. PENDING is the only non-terminal state.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Payout methods
const (
	MethodMobileMoney = "mobile_money"
	MethodBank        = "bank"
)

var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInvalidMethod       = errors.New("method must be mobile_money or bank")
	ErrMissingDestination  = errors.New("destination is required")
	ErrMissingBank         = errors.New("destination_bank is required for bank withdrawals")
	ErrCreatorNotFound     = errors.New("creator not found")
	ErrInsufficientBalance = errors.New("insufficient available balance")
	ErrNotFound            = errors.New("withdrawal not found")
)

// Withdrawal is a creator's request to move funds off the platform.
type Withdrawal struct {
	ID              string    `json:"id"`
	CreatorID       string    `json:"creator_id"`
	Amount          int64     `json:"amount"`
	NetAmount       int64     `json:"net_amount"`
	Method          string    `json:"method"`
	Destination     string    `json:"destination"`
	DestinationBank string    `json:"destination_bank,omitempty"`
	Status          string    `json:"status"`
	PayoutReference string    `json:"payout_reference,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (w Withdrawal) terminal() bool {
	return w.Status == StatusCompleted || w.Status == StatusCancelled
}
