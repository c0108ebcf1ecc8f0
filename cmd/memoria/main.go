// memoria: persistent memory for AI coding sessions, served over MCP.
//
// Sessions group typed observations (decisions, bugfixes, learnings...)
// in a local SQLite database. A three-layer search recalls them and a
// context injector prepends the best matches to outbound prompts.
//
// Usage:
//
//	memoria serve                 # Start MCP server (stdio transport)
//	memoria serve --http :7337    # Start MCP server (streamable HTTP)
//	memoria search <query>        # Search observations
//	memoria save <content>        # Record an observation
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
