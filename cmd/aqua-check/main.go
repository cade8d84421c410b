package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/aquatrade/backend/internal/chain"
	"github.com/aquatrade/backend/internal/config"
	"github.com/aquatrade/backend/internal/core"
	"github.com/aquatrade/backend/internal/llm"
	"github.com/aquatrade/backend/internal/storage"
)

type component struct {
	Name string
	Test func(ctx context.Context, cfg *config.Config) error
}

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	fmt.Println("\033[96mTrading Agent Backend - Pre-Flight Diagnostic\033[0m")
	fmt.Println("---------------------------------------------------------")

	components := []component{
		{"Chain Layer (LCD)", checkChain},
		{"Storage Layer (Bucket)", checkBucket},
		{"Model Layer (LLM)", checkLLM},
	}

	failed := 0
	for _, c := range components {
		fmt.Printf("Checking %-25s ", c.Name+"...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.Test(ctx, cfg)
		cancel()

		if err != nil {
			failed++
			fmt.Println("\033[31m[FAIL]\033[0m")
			fmt.Printf("  >> Error: %v\n", err)
		} else {
			fmt.Println("\033[32m[OK]\033[0m")
		}
	}

	fmt.Println("---------------------------------------------------------")
	if failed > 0 {
		fmt.Printf("\033[31mStatus: %d component(s) unreachable.\033[0m\n", failed)
		os.Exit(1)
	}
	fmt.Println("\033[96mStatus: System ready for traffic.\033[0m")
}

// checkChain queries the sSCRT token info entry point, which needs no
// viewing key, to prove the LCD endpoint answers compute queries.
func checkChain(ctx context.Context, cfg *config.Config) error {
	lcd := chain.NewLCDClient(cfg.Chain.LCDURL, cfg.Chain.ChainID)

	query := map[string]interface{}{"token_info": map[string]interface{}{}}
	var result map[string]interface{}
	return lcd.QueryContract(ctx, chain.AssetSSCRT.Address, chain.AssetSSCRT.CodeHash, query, &result)
}

// checkBucket lists bucket content with the configured credentials. An
// empty bucket still passes; bad credentials or a bad UUID do not.
func checkBucket(ctx context.Context, cfg *config.Config) error {
	client, err := storage.NewBucketClient(
		cfg.Storage.APIKey,
		cfg.Storage.APISecret,
		cfg.Storage.BucketUUID,
		cfg.Storage.BaseURL,
	)
	if err != nil {
		return err
	}
	return client.Ping(ctx)
}

// checkLLM opens a one-token stream and drains it.
func checkLLM(ctx context.Context, cfg *config.Config) error {
	client := llm.NewOllamaClient(cfg.LLM.HostURL, cfg.LLM.APIKey, cfg.LLM.Model)

	chunks, err := client.ChatStream(ctx, []core.Message{{Role: "user", Content: "ping"}})
	if err != nil {
		return err
	}
	for chunk := range chunks {
		if chunk.Err != nil {
			return chunk.Err
		}
	}
	return nil
}
