// resolvectl resolves order text and manages a local catalog without the HTTP server.
package main

import (
	"os"

	"label-resolver/cmd/resolvectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
