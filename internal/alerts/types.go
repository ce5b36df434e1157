package alerts

import "time"

// Task type constants
const (
	TaskSaleEmail     = "email:sale"
	TaskWithdrawalSMS = "sms:withdrawal_completed"
)

// Common envelope for email-like notifications
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sale email payload (sent to the creator after a payment completes)
type SaleEmailPayload struct {
	PaymentID     string        `json:"payment_id"`
	CreatorID     string        `json:"creator_id"`
	Email         string        `json:"email"`
	SupporterName string        `json:"supporter_name"`
	Amount        int64         `json:"amount"`
	Kind          string        `json:"kind"`
	Envelope      EmailEnvelope `json:"envelope"`
	SentAt        time.Time     `json:"sent_at"`
}

// Withdrawal SMS payload (sent to the creator after a payout completes)
type WithdrawalSMSPayload struct {
	WithdrawalID string    `json:"withdrawal_id"`
	CreatorID    string    `json:"creator_id"`
	Phone        string    `json:"phone"`
	NetAmount    int64     `json:"net_amount"`
	Message      string    `json:"message"`
	SentAt       time.Time `json:"sent_at"`
}
