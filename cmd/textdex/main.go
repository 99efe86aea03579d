// Package main provides the entry point for the textdex CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/textdex/cmd/textdex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
