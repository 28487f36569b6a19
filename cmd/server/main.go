package main

import (
	"os"

	"cryptofolio/internal/bootstrap"
	"cryptofolio/internal/config"
	"cryptofolio/internal/handlers"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()

	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		logger.Fatalf("startup failed: %v", err)
	}
	defer app.Close()

	h := handlers.NewHandler(app.Service, logger)
	r := handlers.NewRouter(h)

	logger.Infof("server starting on :%s (backend %s, quotes in %s)", cfg.Port, cfg.LedgerBackend, cfg.QuoteCurrency)
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("server stopped: %v", err)
	}
}
