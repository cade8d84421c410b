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

	"github.com/aquatrade/backend/internal/agent"
	"github.com/aquatrade/backend/internal/api"
	"github.com/aquatrade/backend/internal/auth"
	"github.com/aquatrade/backend/internal/chain"
	"github.com/aquatrade/backend/internal/config"
	"github.com/aquatrade/backend/internal/llm"
	"github.com/aquatrade/backend/internal/storage"
	"github.com/aquatrade/backend/internal/store"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// User store: Supabase when configured, in-memory otherwise.
	var users store.UserRepository
	if cfg.Store.SupabaseURL != "" {
		supaStore, err := store.NewSupabaseUserStore(cfg.Store.SupabaseURL, cfg.Store.SupabaseKey)
		if err != nil {
			log.Fatalf("Failed to initialize Supabase store: %v", err)
		}
		users = supaStore
		log.Println("User store: Supabase")
	} else {
		users = store.NewMemoryUserStore()
		log.Println("User store: in-memory (no SUPABASE_URL set)")
	}

	var history store.HistoryCache
	if cfg.Store.RedisAddr != "" {
		history = store.NewRedisHistoryCache(cfg.Store.RedisAddr)
		log.Printf("History cache: redis at %s", cfg.Store.RedisAddr)
	}

	lcd := chain.NewLCDClient(cfg.Chain.LCDURL, cfg.Chain.ChainID)
	verifier := chain.NewVerifier(lcd, users, cfg.Chain.AgentAddress)

	bucket, err := storage.NewBucketClient(
		cfg.Storage.APIKey,
		cfg.Storage.APISecret,
		cfg.Storage.BucketUUID,
		cfg.Storage.BaseURL,
	)
	if err != nil {
		log.Fatalf("Failed to initialize bucket client: %v", err)
	}

	llmClient := llm.NewOllamaClient(cfg.LLM.HostURL, cfg.LLM.APIKey, cfg.LLM.Model)

	a := agent.New(agent.Options{
		Users:    users,
		Verifier: verifier,
		Audit:    bucket,
		LLM:      llmClient,
		History:  history,
		Metrics:  agent.NewMetrics(),
	})
	if err := a.Connect(cfg.Chain.AgentAddress); err != nil {
		log.Fatalf("Failed to connect agent: %v", err)
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHrs)*time.Hour)
	if err != nil {
		log.Fatalf("Failed to initialize token issuer: %v", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewServer(a, tokens).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // chat responses stream
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal, shutting down gracefully...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Trading agent backend listening on port %s (chain=%s)", cfg.Server.Port, cfg.Chain.ChainID)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}

// loadConfig reads config.yaml when present and falls back to the
// environment; env vars always win over file values.
func loadConfig() *config.Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		cfg, err := config.LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load %s: %v", path, err)
		}
		return cfg
	}
	return config.FromEnv()
}
