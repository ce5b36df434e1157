package alerts

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/hibiken/asynq"
)

var (
	client *asynq.Client
	server *asynq.Server
)

// Init starts the Asynq server and initializes a shared client.
func Init() {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		if host := os.Getenv("REDIS_HOST"); host != "" {
			port := os.Getenv("REDIS_PORT")
			if port == "" {
				port = "6379"
			}
			redisAddr = host + ":" + port
		} else {
			redisAddr = "127.0.0.1:6379"
		}
	}

	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client = asynq.NewClient(opts)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskSaleEmail, handleSaleEmail)
	mux.HandleFunc(TaskWithdrawalSMS, handleWithdrawalSMS)

	server = asynq.NewServer(opts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			"emails": 10,
			"sms":    5,
		},
	})
	go func() {
		if err := server.Run(mux); err != nil {
			log.Printf("Asynq server stopped: %v", err)
		}
	}()

	log.Printf("Asynq initialized (addr=%s)", redisAddr)
}

// Close releases client and stops server.
func Close() {
	if client != nil {
		_ = client.Close()
	}
	if server != nil {
		server.Shutdown()
	}
}

func handleSaleEmail(_ context.Context, t *asynq.Task) error {
	var p SaleEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	if err := SendEmail(p.Email, p.Envelope.Subject, p.Envelope.Body); err != nil {
		log.Printf("[notify][ERROR] SaleEmail send failed: %v", err)
		return err
	}
	log.Printf("[notify] SaleEmail sent -> payment=%s creator=%s", p.PaymentID, p.CreatorID)
	return nil
}

func handleWithdrawalSMS(_ context.Context, t *asynq.Task) error {
	var p WithdrawalSMSPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	if err := SendSMS(p.Phone, p.Message); err != nil {
		log.Printf("[notify][ERROR] WithdrawalSMS send failed: %v", err)
		return err
	}
	log.Printf("[notify] WithdrawalSMS sent -> withdrawal=%s creator=%s", p.WithdrawalID, p.CreatorID)
	return nil
}
