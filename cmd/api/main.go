package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/nwtelemetry/huboffload/internal/config"
	"github.com/nwtelemetry/huboffload/internal/database"
	"github.com/nwtelemetry/huboffload/internal/dispatch"
	"github.com/nwtelemetry/huboffload/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dbpool, err := database.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}
	defer dbpool.Close()

	store := database.NewPostgresStore(context.Background(), dbpool)
	if err := store.EnsureSchema(); err != nil {
		log.Fatalf("Failed to setup database: %v", err)
	}

	dispatcher := dispatch.NewClient(cfg.GithubToken, cfg.GithubRepo, cfg.GithubWorkflow)
	if dispatcher == nil {
		log.Println("Run dispatch is not configured; POST /api/trigger will be unavailable")
	}

	var handler server.Dispatcher
	if dispatcher != nil {
		handler = dispatcher
	}
	router := server.SetupRoutes(server.NewUsageService(store, handler))

	log.Printf("Server starting on port %s", cfg.APIPort)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.APIPort), router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
