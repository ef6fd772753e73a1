package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/akhil1parekh/github-pr-review-agent/internal/config"
	"github.com/akhil1parekh/github-pr-review-agent/internal/daemon"
	"github.com/akhil1parekh/github-pr-review-agent/internal/queue"
	"github.com/akhil1parekh/github-pr-review-agent/internal/storage"
	"github.com/akhil1parekh/github-pr-review-agent/internal/version"
)

func main() {
	// Handle version command before anything else (for CI testing)
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("prrd %s\n", version.Version)
		return
	}

	var (
		dbPath     = flag.String("db", storage.DefaultDBPath(), "path to sqlite database")
		configPath = flag.String("config", config.GlobalConfigPath(), "path to config file")
		addr       = flag.String("addr", "", "server address (overrides config)")
		workers    = flag.Int("workers", 0, "number of workers (overrides config)")
	)
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting prrd...")

	cfg, err := config.LoadGlobalFrom(*configPath)
	if err != nil {
		log.Printf("Warning: failed to load config from %s: %v", *configPath, err)
		cfg = config.DefaultConfig()
	}

	// Apply flag overrides
	if *addr != "" {
		cfg.ServerAddr = *addr
	}
	if *workers > 0 {
		cfg.MaxWorkers = *workers
	}

	// Pick the task store: shared Postgres when configured, local
	// SQLite otherwise.
	var store storage.TaskStore
	if cfg.PostgresURL != "" {
		pg, err := storage.OpenPostgres(context.Background(), cfg.PostgresURL, storage.DefaultPgPoolConfig())
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}
		store = pg
		log.Println("Storage: postgres")
	} else {
		db, err := storage.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		store = db
		log.Printf("Storage: %s", *dbPath)
	}
	defer store.Close()

	broker := queue.NewMemory()
	server := daemon.NewServer(store, broker, cfg, *configPath)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)
		if err := server.Stop(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
		os.Exit(0)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(context.Background()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
