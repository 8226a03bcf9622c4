package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thanhnp/utxo-graph/internal/api"
	"github.com/thanhnp/utxo-graph/internal/config"
	"github.com/thanhnp/utxo-graph/internal/ledger"
	"github.com/thanhnp/utxo-graph/internal/logger"
	"github.com/thanhnp/utxo-graph/internal/models"
	"github.com/thanhnp/utxo-graph/internal/notifier"
	"github.com/thanhnp/utxo-graph/internal/storage"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("server", cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Msg("Starting UTXO ledger server...")

	// Open the store
	log.Info().Str("path", cfg.Pebble.Path).Msg("Opening Pebble database")
	db, err := storage.NewPebbleDB(cfg.Pebble.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open Pebble database")
	}
	graph, err := ledger.OpenGraph(db)
	if err != nil {
		_ = db.Close()
		log.Fatal().Err(err).Msg("Failed to open ledger graph")
	}

	// Fan persisted transactions out to the log
	txNotifier := notifier.New(log, 1024)
	txNotifier.OnTransactionPersisted(func(tx *models.Transaction) {
		value, err := tx.OutputTotal()
		if err != nil {
			log.Warn().Err(err).Str("hash", tx.Hash).Msg("Persisted transaction value overflows")
			return
		}
		log.Info().
			Str("hash", tx.Hash).
			Bool("coinbase", tx.IsCoinbase()).
			Stringer("value", value).
			Msg("Transaction persisted")
	})
	if err := txNotifier.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start notifier")
	}

	l := ledger.New(graph, log,
		ledger.WithMaxSpendRetries(cfg.Ledger.MaxSpendRetries),
		ledger.WithNotifier(txNotifier),
	)

	router := api.NewRouter(l, graph, log)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Engine(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start HTTP server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if err := txNotifier.Stop(); err != nil {
		log.Error().Err(err).Msg("Error stopping notifier")
	}

	if err := graph.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database")
	}

	log.Info().Msg("Server stopped")
}
