// README: Entry point; loads config, wires services, starts HTTP server and the offer sweeper.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courier/internal/config"
	httptransport "courier/internal/http"
	"courier/internal/infra"
	"courier/internal/logger"
	"courier/internal/modules/booking"
	"courier/internal/modules/matching"
	"courier/internal/modules/tracking"
	"courier/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLog := logger.New(cfg.ServiceName)

	if err := infra.Migrate(cfg.DB.DSN); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr, cfg.Redis.Password)
	defer redisClient.Close()

	hub := ws.NewHub(func(r *http.Request) (string, error) {
		// TODO: swap the query-param identity for real token auth
		return r.URL.Query().Get("user_id"), nil
	}, logger.New("ws"))

	trackingStore := tracking.NewStore(dbPool)
	trackingSvc := tracking.NewService(trackingStore, logger.New("tracking"))

	matchingStore := matching.NewStore(redisClient)
	matchingSvc := matching.NewService(matchingStore, logger.New("matching"))

	bookingStore := booking.NewStore(dbPool)
	bookingSvc := booking.NewService(
		bookingStore,
		matchingSvc,
		ws.NewNotifier(hub),
		trackingSvc,
		matchingSvc,
		logger.New("booking"),
		cfg.Matching,
	)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Booking:  bookingSvc,
		Matching: matchingSvc,
		Tracking: trackingSvc,
		Hub:      hub,
		Log:      appLog,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go bookingSvc.RunOfferSweeper(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			appLog.Error("shutdown", logger.Error(err))
		}
	}()

	appLog.Info("listening", logger.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
