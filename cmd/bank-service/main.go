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

const serviceName = "bank-service"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg app.BankServiceConfig
	if _, err := config.Load(serviceName, &cfg, config.Options{
		File:     os.Getenv("BANK_SERVICE_CONFIG"),
		Defaults: app.BankServiceDefaults(),
		Optional: true,
	}); err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Log.Service == "" {
		cfg.Log.Service = cfg.Name
	}
	logger.InitWithConfig(cfg.Log)
	defer logger.Sync()

	if err := app.RunBankService(ctx, cfg); err != nil {
		logger.Error(ctx, "bank service exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
