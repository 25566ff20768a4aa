package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/nwtelemetry/huboffload/internal/cli"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	os.Exit(cli.Execute())
}
