package main

import (
	"context"

	"github.com/dmitrijs2005/daybook/internal/client/cli"
	"github.com/spf13/cobra"
)

var (
	protect   bool
	assumeYes bool
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write all data to a bundle file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if protect {
			args = append(args, "-p")
		}
		return withApp(cmd, func(ctx context.Context, a *cli.App) error {
			return a.Export(ctx, args)
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all local data with a bundle file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if assumeYes {
			args = append(args, "-y")
		}
		return withApp(cmd, func(ctx context.Context, a *cli.App) error {
			return a.Import(ctx, args)
		})
	},
}

func init() {
	exportCmd.Flags().BoolVarP(&protect, "password", "p", false, "encrypt the bundle with a password")
	importCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
