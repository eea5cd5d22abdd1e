// Package main is the entry point for the audiva CLI.
//
// Usage:
//
//	audiva [flags] <command> [subcommand] [args]
//
// Commands:
//
//	serve      - HTTP upload form and prediction API
//	predict    - Classify audio files as real or AI generated
//	dataset    - Build feature archives from labeled directories
//	scaler     - Fit the feature scaler
//	evaluate   - Classification report over an archive
//	model      - Convert classifier artifacts
//	segments   - Export the analysis segments of a file
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/AnkitChauhan19/Audiva/cmd/audiva/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
