package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Yash-Prakash1/connector/internal/cli"
)

func main() {
	// Optional .env for oracle/pool credentials during development.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
