package main

import (
	"github.com/dmitrijs2005/daybook/internal/client/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the interactive shell (default)",
	Args:  cobra.NoArgs,
	RunE:  runREPL,
}

func runREPL(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := cli.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	return a.Run(ctx)
}

func init() {
	rootCmd.AddCommand(runCmd)
}
