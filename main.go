// Package main is the entry point for the rlelink RLE codec CLI.
package main

import (
	"fmt"
	"os"

	"icc.tech/rlelink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
