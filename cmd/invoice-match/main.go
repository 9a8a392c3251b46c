package main

import (
	"os"

	"github.com/eshaffer321/invoice-match-backend/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
