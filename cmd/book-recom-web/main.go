package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/Yuu0413s/book-recom-web/internal/config"
	"github.com/Yuu0413s/book-recom-web/internal/database/bunstore"
	"github.com/Yuu0413s/book-recom-web/internal/embedding"
	"github.com/Yuu0413s/book-recom-web/internal/fetch"
	"github.com/Yuu0413s/book-recom-web/internal/search"
	"github.com/Yuu0413s/book-recom-web/internal/server"
	"github.com/Yuu0413s/book-recom-web/internal/source"
	syncpkg "github.com/Yuu0413s/book-recom-web/internal/sync"
	"github.com/Yuu0413s/book-recom-web/internal/vector"
)

func main() {
	log.Println("Starting book-recom-web...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	dbConn, err := sql.Open(sqliteshim.ShimName, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", cfg.DBPath, err)
	}
	defer func() {
		if closeErr := dbConn.Close(); closeErr != nil {
			log.Printf("[Warning] Failed to close database: %v", closeErr)
		}
	}()

	store, err := bunstore.NewBunStore(dbConn, sqlitedialect.New())
	if err != nil {
		return err
	}

	embedder, err := embedding.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	index, err := vector.NewQdrantIndex(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, embedder.Dimensions())
	if err != nil {
		return err
	}
	defer func() { _ = index.Close() }()

	client := fetch.NewClient()
	adapters := []source.Adapter{
		source.NewNarouAdapter(client, store),
		source.NewGoogleBooksAdapter(client, store),
		source.NewOpenLibraryAdapter(client, store),
		source.NewAozoraAdapter(client, store),
		source.NewCiNiiAdapter(client, store),
	}

	orchestrator := syncpkg.NewOrchestrator(adapters, store)
	backfiller := embedding.NewBackfiller(store, index, embedder, cfg.BackfillBatchSize)
	searcher := search.NewService(embedder, index, store)

	apiServer := server.NewServer(orchestrator, store, searcher, backfiller, cfg.SyncSecret)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: apiServer.RegisterRoutes(),
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[System] Starting REST API server on :%d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	log.Println("[System] Shutdown signal received. Draining connections...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Error] HTTP shutdown error: %v", err)
	}

	log.Println("[System] Server stopped gracefully.")
	return nil
}
