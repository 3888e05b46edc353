// Command docq is the entry point for the docq document Q&A assistant.
// It provides a CLI interface (via Cobra) for ingesting documents and asking
// questions, plus an optional HTTP server for programmatic use.
package main

import (
	"fmt"
	"os"

	"github.com/docforge/docq-go/cmd/docq/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
