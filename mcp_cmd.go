package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/parleychat/parley/client"
	"github.com/parleychat/parley/mcp"
)

var (
	mcpServer string
	mcpToken  string

	mcpCmd = &cobra.Command{
		Use:   "mcp",
		Short: "Expose the account as MCP tools over stdio",
		Long: `Expose the account as Model Context Protocol tools over stdio.

Agents get whoami, session_list, session_create, session_join, chat_history
and chat_send against the same server the TUI talks to. Intended to be
spawned by an MCP host, not run by hand.`,
		RunE: runMCP,
	}
)

func init() {
	mcpCmd.Flags().StringVar(&mcpServer, "server", serverDefault(), "server base URL")
	mcpCmd.Flags().StringVar(&mcpToken, "token", os.Getenv("PARLEY_TOKEN"), "bearer token from parley login")
}

func runMCP(cmd *cobra.Command, args []string) error {
	if mcpToken == "" {
		return errors.New("--token is required (or set PARLEY_TOKEN)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()

	cli, err := client.Dial(ctx, mcpServer, mcpToken)
	if err != nil {
		return err
	}
	defer cli.Close()

	return mcp.NewServer(cli, version).ServeStdio()
}
