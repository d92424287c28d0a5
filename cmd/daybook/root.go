package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/daybook/internal/client/cli"
	"github.com/dmitrijs2005/daybook/internal/client/config"
	"github.com/spf13/cobra"
)

var (
	cfg        *config.Config
	configFile string
)

// rootCmd opens the REPL when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "daybook",
	Short: "Local-first planner with backup sync",
	Long: `daybook keeps tasks, notes, spaces, quotes and workouts in a local
database and mirrors them to a single backup blob (a directory, S3 or backupd).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(os.Args[1:])
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		return nil
	},
	RunE: runREPL,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (JSON or YAML)")
	rootCmd.PersistentFlags().AddGoFlagSet(config.Flags())
}

// withApp runs fn against an app with automatic sync turned off, so a
// one-shot command does not leave background passes behind.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *cli.App) error) error {
	ctx := cmd.Context()
	cfg.AutoSync = false

	a, err := cli.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if err := a.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}
