/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the parking reservation server. Handles
  configuration, dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load environment config (.env supported), parse command-line flags
  2. Pick the backing store (in-memory by default, SQLite with -db)
  3. Initialize the slot collection (idempotent)
  4. Wire ledger, bus, engine, identity provider, handlers, router
  5. Start the server with graceful shutdown

COMMAND-LINE FLAGS:
  -port   HTTP server port (default from SERVER_PORT, then 8080)
  -db     SQLite database path. Empty or ":memory:" keeps the in-memory
          store, matching the mocked real-time layer of the original
          deployment.
  -slots  Number of parking slots to create on first run (default 20)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment settings
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/parking-engine/api"
	"github.com/warp/parking-engine/auth"
	"github.com/warp/parking-engine/config"
	"github.com/warp/parking-engine/parking"
	memstore "github.com/warp/parking-engine/parking/store"
	"github.com/warp/parking-engine/store/sqlite"
)

func main() {
	cfg := config.Load()

	port := flag.Int("port", cfg.ServerPort, "HTTP server port")
	dbPath := flag.String("db", cfg.DatabasePath, `SQLite database path (":memory:" for the in-memory store)`)
	slotCount := flag.Int("slots", cfg.SlotCount, "number of parking slots")
	flag.Parse()

	var (
		slots   parking.SlotStore
		history parking.HistoryStore
		closeFn func() error
	)
	if *dbPath == "" || *dbPath == ":memory:" {
		mem := memstore.NewMemory()
		slots, history = mem, mem
		closeFn = func() error { return nil }
		log.Println("Using in-memory store")
	} else {
		db, err := sqlite.New(*dbPath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		slots, history = db, db
		closeFn = db.Close
		log.Printf("Using SQLite store at %s", *dbPath)
	}
	defer closeFn()

	ctx := context.Background()
	if err := slots.Initialize(ctx, *slotCount); err != nil {
		log.Fatalf("Failed to initialize parking slots: %v", err)
	}

	ledger := parking.NewLedger(history)
	bus := parking.NewBus(slots, ledger)
	engine := parking.NewEngine(slots, ledger, bus,
		parking.WithLatency(cfg.ToggleLatency))
	identity := auth.NewProvider([]byte(cfg.SessionSecret),
		auth.WithAdminUsername(cfg.AdminUsername),
		auth.WithSessionTTL(cfg.SessionTTL))
	stats := &parking.StatsCollector{Slots: slots, Ledger: ledger}

	handler := api.NewHandler(engine, bus, identity, stats)
	router := api.NewRouter(handler)

	// Mark the bus connected and seed subscribers with a first snapshot.
	bus.Publish(ctx)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("🅿️  %d slots, admin username %q", *slotCount, cfg.AdminUsername)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
