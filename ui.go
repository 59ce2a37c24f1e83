package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/parleychat/parley/client"
	"github.com/parleychat/parley/tui"
)

var (
	uiServer string
	uiToken  string

	uiCmd = &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive chat terminal",
		Long: `Open the interactive chat terminal.

Needs a bearer token from "parley login"; pass it with --token or the
PARLEY_TOKEN environment variable.`,
		RunE: runUI,
	}
)

func init() {
	uiCmd.Flags().StringVar(&uiServer, "server", serverDefault(), "server base URL")
	uiCmd.Flags().StringVar(&uiToken, "token", os.Getenv("PARLEY_TOKEN"), "bearer token from parley login")
}

func runUI(cmd *cobra.Command, args []string) error {
	if uiToken == "" {
		return errors.New("--token is required (or set PARLEY_TOKEN)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()

	cli, err := client.Dial(ctx, uiServer, uiToken)
	if err != nil {
		return err
	}
	defer cli.Close()

	return tui.Run(tui.Config{API: cli, Identity: cli.Identity()})
}
