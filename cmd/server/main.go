package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"airdrop-backend/internal/app"
	"airdrop-backend/internal/config"
	"airdrop-backend/internal/handlers"
	"airdrop-backend/internal/router"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	container, err := app.NewContainer(cfg, logger)
	if err != nil {
		log.Fatalf("❌ Failed to initialize services: %v", err)
	}

	h := &router.Handlers{
		Health:            handlers.NewHealthHandler(container.DB, container.NATSClient),
		Airdrop:           handlers.NewAirdropHandler(container.Manager, logger),
		AdminAuth:         handlers.NewAdminAuthHandler(&cfg.Admin, logger),
		AdminDistribution: handlers.NewAdminDistributionHandler(container.Scheduler, container.DB, &cfg.Admin, logger),
		Retry:             handlers.NewRetryHandler(container.RetrySvc, logger),
		WebSocket:         handlers.NewWebSocketHandler(container.Emitter),
	}
	engine := router.SetupRouter(cfg, logger, h)

	container.Start()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		log.Printf("🚀 [Server] Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ [Server] Listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 [Server] Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️ [Server] Forced shutdown: %v", err)
	}

	container.Stop()
	log.Println("✅ [Server] Exited cleanly")
}
