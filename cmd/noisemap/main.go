// Package main is the entry point for the noisemap CLI.
//
// Usage:
//
//	noisemap [flags] <command> [args]
//
// Commands:
//
//	serve      - HTTP prediction and heatmap service
//	train      - Train a bundle from a labelled corpus
//	predict    - Classify audio files with a bundle
//	features   - Print the feature vector of an audio file
//	inspect    - Describe a bundle
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/noisemap/cmd/noisemap/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
