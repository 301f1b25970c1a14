package main

import (
	"os"

	"gattguard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ReportError(os.Stderr, err))
	}
}
