package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/xraph/cascade/cli"
)

func main() {
	// Optional .env; flag defaults read the environment.
	_ = godotenv.Load()

	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
