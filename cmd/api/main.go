package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vinylclub/api/internal/app"
	"vinylclub/api/internal/catalog"
	"vinylclub/api/internal/config"
	"vinylclub/api/internal/metrics"
	"vinylclub/api/internal/musicbrainz"
	"vinylclub/api/internal/search"
	"vinylclub/api/internal/session"
	"vinylclub/api/internal/store"
	"vinylclub/api/internal/votebus"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL, store.PoolLimits{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	sessions, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer sessions.Close()

	dataStore := store.NewPostgresStore(db)
	catalogClient := catalog.NewClient(cfg.CatalogURL, cfg.CatalogDataset, cfg.CatalogToken, cfg.CatalogTimeout)
	bus := votebus.New()
	m := metrics.New()

	searcher := search.NewPgFTS(db)
	lookup := musicbrainz.NewClient(cfg.MusicBrainzURL, cfg.MusicBrainzUserAgent, cfg.MusicBrainzTimeout)
	service := app.New(cfg, dataStore, catalogClient, sessions, searcher, lookup, bus, m)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, m)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0, // SSE connections stay open
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Vinylclub API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
