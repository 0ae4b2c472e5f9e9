// Command codevault is the CLI entrypoint for local semantic code search:
// it wires internal/app's project bootstrap into index/search/serve-mcp
// and context-pack subcommands, delegating straight into a cobra root
// command.
package main

import (
	"os"

	"github.com/codevault/codevault/cmd/codevault/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
