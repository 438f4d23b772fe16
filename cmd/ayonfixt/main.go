package main

import (
	"os"

	"github.com/ynput/ayonfixt/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
