// Command asocd is a thin example wrapper around the asoc package: it
// starts one node, logs membership and inbound-stream events, and
// exits on SIGINT/SIGTERM. It is explicitly out of scope for the core
// protocol (spec.md §1 "CLI wrappers... are external collaborators");
// everything it does goes through the public asoc.Node API.
package main

import (
	"os"

	"github.com/asoc-io/asoc/cmd/asocd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
