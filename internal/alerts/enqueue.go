package alerts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// ensureClient returns a usable client instance
func ensureClient() *asynq.Client {
	if client == nil {
		Init()
	}
	return client
}

// EnqueueSaleEmail notifies the creator that a supporter payment landed.
// Called only after the ledger transaction committed.
func EnqueueSaleEmail(paymentID, creatorID, creatorName, email, supporterName string, amount int64, kind string) error {
	from := supporterName
	if from == "" {
		from = "A supporter"
	}
	what := "sent you direct support"
	if kind == "wishlist_pledge" {
		what = "pledged toward one of your wishlist goals"
	}

	env := EmailEnvelope{
		To:      email,
		Subject: "You just got paid on TipJar!",
		Body: fmt.Sprintf("Hi %s,\n\n%s %s: %s.\n\nThe funds are in your TipJar balance.\n\n— TipJar",
			creatorName, from, what, formatAmount(amount)),
	}
	payload := SaleEmailPayload{
		PaymentID: paymentID, CreatorID: creatorID, Email: email,
		SupporterName: supporterName, Amount: amount, Kind: kind,
		Envelope: env, SentAt: time.Now(),
	}
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(TaskSaleEmail, b)
	_, err := ensureClient().Enqueue(task, asynq.Queue("emails"))
	return err
}

// EnqueueWithdrawalSMS notifies the creator that a payout reached their
// account. Enqueued at most once per actual status transition.
func EnqueueWithdrawalSMS(withdrawalID, creatorID, phone string, netAmount int64) error {
	payload := WithdrawalSMSPayload{
		WithdrawalID: withdrawalID,
		CreatorID:    creatorID,
		Phone:        phone,
		NetAmount:    netAmount,
		Message:      fmt.Sprintf("TipJar: your withdrawal of %s has been paid out.", formatAmount(netAmount)),
		SentAt:       time.Now(),
	}
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(TaskWithdrawalSMS, b)
	_, err := ensureClient().Enqueue(task, asynq.Queue("sms"))
	return err
}

// formatAmount renders minor units as a major-unit string (kobo -> naira).
func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
