package main

import (
	"os"

	// Import for side effects: registers the built-in pipeline steps
	_ "github.com/esm-tools/cmorize/pkg/steps"
)

func main() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
