package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/sudo-init-do/tipjar/internal/db"
	"github.com/sudo-init-do/tipjar/internal/wishlist"
)

// sweeper runs one wishlist expiration pass and exits. Intended to be
// invoked from cron; re-running is safe.
// Usage:
//
//	go run cmd/sweeper/main.go
func main() {
	_ = godotenv.Load()

	db.Init()

	res, err := wishlist.ProcessExpired(context.Background(), db.Conn)
	if err != nil {
		log.Fatalf("expiration sweep failed: %v", err)
	}

	fmt.Printf("expired=%d released=%d creators=%v\n",
		res.ExpiredCount, res.ReleasedAmount, res.AffectedCreators)
}
