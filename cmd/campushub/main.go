package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campushub/internal/auth"
	"campushub/internal/clubs"
	"campushub/internal/config"
	"campushub/internal/db"
	"campushub/internal/events"
	"campushub/internal/feedback"
	"campushub/internal/httpserver"
	"campushub/internal/items"
	"campushub/internal/logging"
	"campushub/internal/notifications"
)

func main() {
	ctx := context.Background()
	logger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbConn, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()

	if err := db.RunMigrations(ctx, dbConn); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	userStore := auth.NewStore(dbConn, cfg.BcryptCost)
	if err := userStore.SeedFromFile(ctx, cfg.UsersPath, logger); err != nil {
		log.Fatalf("seed users: %v", err)
	}
	authSvc := auth.NewService(userStore, cfg.JWTSecret, cfg.TokenTTL, cfg.BcryptCost)

	itemStore := items.NewStore(dbConn)
	eventStore := events.NewStore(dbConn)
	feedbackStore := feedback.NewStore(dbConn)
	clubStore := clubs.NewStore(dbConn)
	notifStore := notifications.NewStore(dbConn)

	handler := httpserver.NewRouter(logger, authSvc, userStore,
		itemStore, eventStore, feedbackStore, clubStore, notifStore)
	server := httpserver.New(cfg.HTTPAddr, handler, logger)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
