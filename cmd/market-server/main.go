package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gopherbazaar.com/internal/app"
	"gopherbazaar.com/pkg/config"
	"gopherbazaar.com/pkg/logger"
)

const serviceName = "market-server"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg app.MarketServerConfig
	// MARKET_SERVER_CONFIG points at an explicit file
	if _, err := config.Load(serviceName, &cfg, config.Options{
		File:     os.Getenv("MARKET_SERVER_CONFIG"),
		Defaults: app.MarketDefaults(),
		Optional: true,
	}); err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Log.Service == "" {
		cfg.Log.Service = cfg.Name
	}
	logger.InitWithConfig(cfg.Log)
	defer logger.Sync()

	srv, err := app.NewMarketServer(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "init market server", zap.Error(err))
	}
	if err := srv.Run(ctx); err != nil {
		logger.Error(ctx, "market server exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
