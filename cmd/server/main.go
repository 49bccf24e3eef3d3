package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/thanhnp/chainledger/internal/api"
	"github.com/thanhnp/chainledger/internal/config"
	"github.com/thanhnp/chainledger/internal/ledger"
	"github.com/thanhnp/chainledger/internal/node"
	"github.com/thanhnp/chainledger/internal/notifier"
	"github.com/thanhnp/chainledger/internal/storage"
	"github.com/thanhnp/chainledger/internal/sync"
)

func main() {
	// Parse command line flags: server [-config path] [port] [public url]
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := applyArgs(cfg, flag.Args()); err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}

	if cfg.Log.File != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxAge:     cfg.Log.MaxAgeDays,
			MaxBackups: cfg.Log.MaxBackups,
		})
	}

	log.Printf("Starting chain ledger node at %s...", cfg.NodeURL())

	// Open storage
	var stores *storage.ChainStores
	if cfg.Pebble.Path != "" {
		log.Printf("Opening Pebble database at %s", cfg.Pebble.Path)
		db, err := storage.NewPebbleDB(cfg.Pebble.Path)
		if err != nil {
			log.Fatalf("Failed to open Pebble database: %v", err)
		}
		stores = storage.NewChainStores(db)
	} else {
		log.Println("Warning: persistence disabled, state is kept in memory only")
	}

	// Create the node
	timeout := time.Duration(cfg.Peer.TimeoutSeconds) * time.Second
	httpClient := &http.Client{Timeout: timeout}
	bcast := notifier.NewBroadcaster(notifier.HTTPDialer(httpClient), timeout, cfg.Peer.MaxParallel)

	svc, err := node.NewService(node.Options{
		NodeURL:      cfg.NodeURL(),
		Reward:       cfg.Mining.Reward,
		RewardSender: cfg.Mining.RewardSender,
	}, ledger.New(ledger.NewHashEngine(cfg.Mining.Difficulty)), bcast, stores)
	if err != nil {
		log.Fatalf("Failed to create node: %v", err)
	}
	log.Printf("Node address %s, difficulty %q", svc.Info().NodeID, cfg.Mining.Difficulty)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	syncer := sync.NewSyncer(svc, time.Duration(cfg.Sync.ConsensusInterval)*time.Second)

	// Initialize API router
	router := api.NewRouter(svc, syncer)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Engine(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // mining may run long
		IdleTimeout:  120 * time.Second,
	}

	// Start HTTP server in goroutine
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Join the network through the configured seeds, then keep reconciling
	go func() {
		if len(cfg.Peer.Seeds) > 0 {
			for _, r := range svc.Join(ctx, cfg.Peer.Seeds) {
				if !r.OK() {
					log.Printf("Warning: failed to join through %s: %v", r.Peer, r.Err)
				}
			}
		}
		if err := syncer.Start(ctx); err != nil {
			log.Printf("Warning: Failed to start syncer: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	// Cancel context to stop the syncer and in-flight mining
	cancel()

	if err := syncer.Stop(); err != nil {
		log.Printf("Error stopping syncer: %v", err)
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Close the database once no request can write to it
	if stores != nil {
		if err := stores.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}

	log.Println("Server stopped")
}

// applyArgs overrides the port and public URL from positional arguments
func applyArgs(cfg *config.Config, args []string) error {
	if len(args) > 0 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", args[0], err)
		}
		cfg.Server.Port = port
	}
	if len(args) > 1 {
		cfg.Server.PublicURL = args[1]
	}
	return cfg.Validate()
}
