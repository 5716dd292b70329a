// Command workboard serves the workboard MCP server over stdio and offers a
// few maintenance subcommands.
//
// Usage:
//
//	workboard serve     # Start MCP server (stdio transport)
//	workboard resync    # Refresh every known board once and print the report
//	workboard status    # Print the persisted metadata snapshot
package main

import (
	"fmt"
	"os"

	"github.com/HendryAvila/workboard-mcp/cmd/workboard/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
