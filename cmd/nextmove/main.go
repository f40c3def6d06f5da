// Package main is the entry point for the nextmove service and CLI.
package main

import (
	"os"

	"github.com/PratikDhanave/next-action-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
