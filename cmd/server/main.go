package main

import (
	"os"

	"github.com/sat-prep/backend/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
