package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"crypto-trader/internal/cli"
)

func main() {
	// Optional .env for OPENAI_API_KEY and TRADING_MODE overrides.
	_ = godotenv.Load()

	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
