package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/Wxl-c137/BlindMarkerMaster/mcp"
	"github.com/Wxl-c137/BlindMarkerMaster/progress"
	"github.com/Wxl-c137/BlindMarkerMaster/services"
	"github.com/Wxl-c137/BlindMarkerMaster/storage"
)

type config struct {
	StoreDriver string
	PGDSN       string
	MetricsAddr string
}

func loadConfig() config {
	storeDriver := os.Getenv("BM_STORE_DRIVER")
	if storeDriver == "" {
		storeDriver = "memory"
	}
	return config{
		StoreDriver: storeDriver,
		PGDSN:       os.Getenv("BM_PG_DSN"),
		MetricsAddr: os.Getenv("BM_METRICS_ADDR"),
	}
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	var store storage.Store
	switch cfg.StoreDriver {
	case "postgres":
		if cfg.PGDSN == "" {
			log.Fatal("BM_PG_DSN required when BM_STORE_DRIVER=postgres")
		}
		pg, err := storage.NewPGStore(ctx, cfg.PGDSN)
		if err != nil {
			log.Fatalf("failed to init store: %v", err)
		}
		store = pg
	default:
		store = storage.NewMemoryStore()
	}
	defer store.Close()

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", progress.MetricsHandler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Printf("metrics listener stopped: %v", err)
			}
		}()
	}

	jobs := services.NewJobService(store)
	mcpServer := mcp.NewMCPServer(jobs)

	log.Printf("BlindMarker MCP server starting (driver=%s, workers=%d)", cfg.StoreDriver, jobs.Workers())
	if err := server.ServeStdio(mcpServer.GetMCPServer()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
