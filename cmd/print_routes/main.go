package main

import (
	"log"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/vikasavnish/gymledger/internal/api"
	"github.com/vikasavnish/gymledger/internal/config"
	"github.com/vikasavnish/gymledger/internal/db"
	"github.com/vikasavnish/gymledger/internal/messaging"
	"github.com/vikasavnish/gymledger/internal/metrics"
	"github.com/vikasavnish/gymledger/internal/websocket"
)

// Builds the real router over a scratch database and prints its routes.
func main() {
	dir, err := os.MkdirTemp("", "gymledger-routes")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	cfg := config.Load()
	cfg.Database.URL = filepath.Join(dir, "routes.db")

	logger := zap.NewNop()
	database, err := db.Connect(cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to open scratch database: %v", err)
	}

	wsHub := websocket.NewHub(logger)
	m := metrics.New()
	svc := api.NewServices(database, nil, wsHub, messaging.NewWhatsAppClient(cfg.Messaging), m, cfg, logger)
	router := api.SetupRouter(database, svc, wsHub, m, cfg, logger)

	if err := api.PrintRoutes(os.Stdout, router); err != nil {
		log.Fatal(err)
	}
}
