package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"market-relay/src/config"
	"market-relay/src/logger"
	"market-relay/src/snapshot"
	"market-relay/src/store"
	"market-relay/src/utils"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.LogLevel, conf.Name)

	// 4. Push journal (optional; failures degrade to no journal)
	journal := setupJournal(conf.MConfig, appLogger)
	defer journal.Close()

	// 5. Canonical store
	marketStore := store.NewMarketDataStore(conf.Snapshot, logger.NewLogger(conf.LogLevel, "Store"))
	if err := marketStore.Load(); err != nil {
		appLogger.Warning("Starting without market data: %v", err)
	}

	// 6. Servers
	writer := snapshot.NewWriter(conf.Snapshot.LiveFile)
	clock := utils.NewMarketClock(logger.NewLogger(conf.LogLevel, "MarketClock"))
	servers := newServers(conf.MConfig, appLogger, marketStore, writer, journal, clock)

	// Lifecycle Management
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		marketStore.Watch(ctx)
	}()

	servers.start(ctx, &wg)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received %v, shutting down...", sig)
	case err := <-servers.failed:
		appLogger.Error("Server failed: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	servers.stop(shutdownCtx)
	cancel()
	wg.Wait()
	appLogger.Info("Shutdown complete.")
}
