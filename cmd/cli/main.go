// WaitLens - waiting-time analysis for process-mining event logs.
//
// WaitLens extracts directly-follows transitions from an event log, reconciles
// an external waiting-time reasons report against it and aggregates a chosen
// metric per transition.
package main

import (
	"os"

	"github.com/ccollicutt/waitlens/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
