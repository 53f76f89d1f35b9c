// Command dataq is the entry point for the DataQ question routing engine.
// It provides a CLI interface (via Cobra) and an optional HTTP server for
// asking natural language questions about tabular data.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/dataq-go/cmd/dataq/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
