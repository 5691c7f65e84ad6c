package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campusride/campus/internal/config"
	"github.com/campusride/campus/internal/handler"
	"github.com/campusride/campus/internal/service"
	"github.com/campusride/campus/shared/middleware"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	middleware.MustInitJWTSecret()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	core, err := service.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start core: %v", err)
	}
	defer core.Close()

	walletHandler := handler.NewWalletHandler(core.Ledger, core.LedgerQueries)
	rideHandler := handler.NewRideHandler(core.Rides, core.RideQueries)
	rentalHandler := handler.NewRentalHandler(core.Rentals, core.RentalQueries)
	liveHandler := handler.NewLiveHandler(core.Feed, cfg.AllowedOrigins)
	healthHandler := handler.NewHealthHandler(core)

	router := gin.Default()
	router.Use(middleware.LoggingMiddleware())

	router.GET("/health", healthHandler.Health)

	wallet := router.Group("/v1/wallet", middleware.AuthMiddleware())
	{
		wallet.GET("", walletHandler.GetWallet)
		wallet.GET("/transactions", walletHandler.ListTransactions)
		wallet.POST("/topup", walletHandler.TopUp)
		wallet.POST("/payments", walletHandler.Pay)
	}

	rides := router.Group("/v1/rides", middleware.AuthMiddleware())
	{
		rides.POST("", rideHandler.CreateRide)
		rides.GET("", rideHandler.ListOpenRides)
		rides.GET("/mine", rideHandler.ListMyRides)
		rides.POST("/:requestId/offer", rideHandler.OfferRide)
		rides.POST("/:requestId/complete", rideHandler.CompleteRide)
		rides.POST("/:requestId/cancel", rideHandler.CancelRide)
	}

	scooties := router.Group("/v1/scooties", middleware.AuthMiddleware())
	{
		scooties.POST("", rentalHandler.CreateListing)
		scooties.GET("", rentalHandler.ListAvailable)
		scooties.GET("/mine", rentalHandler.ListMyListings)
		scooties.GET("/rentals", rentalHandler.ListMyRentals)
		scooties.POST("/:scootyId/rent", rentalHandler.RentScooty)
		scooties.POST("/:scootyId/return", rentalHandler.ReturnScooty)
		scooties.POST("/:scootyId/withdraw", rentalHandler.WithdrawScooty)
		scooties.POST("/:scootyId/relist", rentalHandler.RelistScooty)
	}

	router.GET("/v1/live", middleware.OptionalAuthMiddleware(), liveHandler.Stream)

	go func() {
		if err := core.RunAudit(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Ledger audit stopped: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down...")
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}()

	log.Printf("Campus server starting on port %s (backend=%s)", cfg.Port, core.Mode())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}
