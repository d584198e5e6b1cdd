package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Secrets (Telegram token etc.) may live in a local .env file.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
