// Package main provides the ark CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
