package main

import (
	"context"
	"log"
	"time"

	"notesync/auth"
	"notesync/models"
	"notesync/web"
	"notesync/web/api"

	"github.com/rohanthewiz/logger"
)

func main() {
	cfg, err := models.LoadServerConfig()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	logger.SetLogLevel(cfg.LogLevel)

	if cfg.JWTSecret != "" {
		if err := auth.Init(cfg.JWTSecret); err != nil {
			log.Fatal("Failed to initialize auth: ", err)
		}
	}
	api.SetRequireAuth(cfg.RequireAuth)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = models.OpenBackends(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatal("Failed to open storage: ", err)
	}
	defer models.CloseDB()

	srv := web.NewServer(cfg.Addr)
	logger.Info("Starting notesync server", "addr", cfg.Addr, "store", cfg.Store, "auth", cfg.RequireAuth)
	log.Fatal(web.Run(srv, cfg.Addr))
}
