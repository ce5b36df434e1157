package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sudo-init-do/tipjar/internal/admin"
	"github.com/sudo-init-do/tipjar/internal/alerts"
	"github.com/sudo-init-do/tipjar/internal/db"
	"github.com/sudo-init-do/tipjar/internal/ledger"
	mware "github.com/sudo-init-do/tipjar/internal/middleware"
	"github.com/sudo-init-do/tipjar/internal/payments"
	"github.com/sudo-init-do/tipjar/internal/wishlist"
	"github.com/sudo-init-do/tipjar/internal/withdrawals"
)

func main() {
	_ = godotenv.Load()

	// Init subsystems
	db.Init()
	alerts.Init()
	defer alerts.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Health and readiness
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/ready", func(c echo.Context) error {
		if db.Conn == nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db not initialized"})
		}
		if err := db.Conn.Ping(context.Background()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	// Public payment intake, rate limited per IP to protect the gateway
	pay := e.Group("/pay")
	pay.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	pay.POST("/:creator_id", payments.InitPayment)

	e.GET("/creators/:id/wishlists", wishlist.ListPublicWishlists)

	// Gateway callbacks and reconciliation
	e.POST("/gateway/notify", payments.GatewayNotify)
	e.POST("/payments/:id/reconcile", payments.ReconcilePayment)

	// Creator routes
	creator := e.Group("/creator")
	creator.Use(mware.JWTMiddleware)
	creator.Use(mware.RequireRoles("creator", "admin"))

	creator.GET("/balance", ledger.Balance)
	creator.GET("/payments", payments.ListCreatorPayments)
	creator.POST("/wishlists", wishlist.CreateWishlist)
	creator.GET("/wishlists", wishlist.ListCreatorWishlists)
	creator.POST("/withdrawals", withdrawals.InitWithdrawal)
	creator.GET("/withdrawals", withdrawals.ListCreatorWithdrawals)
	creator.GET("/withdrawals/:id", withdrawals.GetWithdrawal)

	// Admin routes
	adminGroup := e.Group("/admin")
	adminGroup.Use(mware.JWTMiddleware)
	adminGroup.Use(mware.AdminGuard)

	adminGroup.GET("/stats", admin.Stats)
	adminGroup.GET("/withdrawals", admin.ListWithdrawals)
	adminGroup.POST("/wishlists/expire", wishlist.RunExpirationSweep)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("API server listening on :%s", port)
	if err := e.Start(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
