// Package cli implements the peer launcher's command-line interface using
// Cobra, the ambient-stack CLI library carried over from
// Tutu-Engine-tutuengine/internal/cli.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trisp2p [host] [port]",
	Short: "trisp2p — decentralized peer-to-peer tic-tac-toe",
	Long: `trisp2p runs one peer of a fully decentralized tic-tac-toe mesh.

Each process registers an RPC server on host:port, joins multicast
discovery, and automatically pairs with a free peer it discovers —
there is no matchmaking server and no central authority. Ported from
the original gamep2p.AutoPeerMain entry point.

Argument handling mirrors the original:
  no arguments   host = this machine's address, port chosen automatically
  one argument   host = args[0], port chosen automatically
  two arguments  host = args[0], port = args[1]`,
	Args:          cobra.MaximumNArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPeer,
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to a TOML config file (defaults are used if omitted)")
	rootCmd.Flags().StringVar(&flagUI, "ui", "", "interaction adapter: stdin or termbox (overrides config)")
}

var (
	flagConfig string
	flagUI     string
)

// Execute runs the root command. Called from cmd/peer/main.go.
func Execute(version string) {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
