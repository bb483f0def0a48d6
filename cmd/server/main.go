package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"digiwallet/internal/config"
	"digiwallet/internal/handler"
	"digiwallet/internal/infrastructure/cache"
	"digiwallet/internal/infrastructure/database"
	"digiwallet/internal/infrastructure/lock"
	"digiwallet/internal/infrastructure/mq"
	"digiwallet/internal/job"
	"digiwallet/internal/repository"
	"digiwallet/internal/service"
	"digiwallet/pkg/idgen"
)

func main() {
	cfg := config.LoadConfig("config/config.yaml")

	idgen.Init(1)

	db := database.InitMySQL(&cfg.MySQL)
	redisClient := cache.InitRedis(&cfg.Redis)

	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background jobs.
	outboxSender := job.NewOutboxSender(db, cfg)
	go outboxSender.Start(ctx)

	pendingReaper := job.NewPendingReaper(db, cfg)
	go pendingReaper.Start(ctx)

	// Services wired on the injected store handle.
	st := repository.NewStore(db)
	sessions := cache.NewSessionStore(redisClient)
	locker := lock.NewAccountLocker(redisClient)

	authService := service.NewAuthService(st, sessions, cfg.Auth.SessionTTL())
	accountService := service.NewAccountService(st)
	ledgerService := service.NewLedgerService(st, locker, &cfg.Ledger, cfg.Kafka.Topic.TransactionCompleted)

	router := handler.SetupRouter(authService, accountService, ledgerService)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	log.Println("server stopped")
}
