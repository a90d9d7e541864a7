package main

import (
	"flag"
	"os"

	"beacon/internal/config"
	"beacon/internal/infrastructure/storage"
	"beacon/internal/web"
	"beacon/pkg/logger"
)

func main() {
	log := logger.New("beacon-web")

	configPath := flag.String("config", config.DefaultPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("load config: %v", err)
		os.Exit(1)
	}

	store, err := storage.OpenReadOnly(cfg.Database.Path)
	if err != nil {
		log.Printf("open store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	server := web.NewServer(store, cfg.Filtering.MinRelevanceScore, cfg.Web.RecentDays)

	log.Printf("dashboard listening on %s", cfg.Web.Addr)
	if err := server.App().Listen(cfg.Web.Addr); err != nil {
		log.Printf("serve: %v", err)
		os.Exit(1)
	}
}
