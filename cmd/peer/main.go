// Command peer is the single-binary entrypoint for trisp2p: one process is
// one peer in the decentralized mesh. Ported from
// original_source/AutoPeerMain.java's role as the bare entry point that
// hands everything off to the Peer core.
package main

import "github.com/lzarth/trisp2p/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
