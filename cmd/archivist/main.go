// Command archivist extracts text and metadata sidecars from a document tree
// and archives processed documents.
package main

import (
	"context"
	"os"

	"github.com/custodia-labs/archivist/internal/adapters/driving/cli"
	"github.com/custodia-labs/archivist/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBuilder(build)

	err := cli.Execute(context.Background())
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
