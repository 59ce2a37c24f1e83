package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is stamped by the release build via -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Two-person chat with a self-hosted server",
	Long: `parley is a two-person chat system: one self-hosted server and terminal
clients that speak JSON-RPC 2.0 over WebSocket.

Run a server with "parley serve", get a token with "parley login", then chat
with "parley ui". "parley mcp" exposes the same account as MCP tools for
agent use, and "parley discover" locates a server on the local network.`,
	Version: version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(uiCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
