// Package main is the entry point of the TpLearn homework bot.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tplearn/tplearn-bot/internal/cli"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "tplearn",
		Short:   "TpLearn - homework tracking bot for Discord",
		Version: version,
		Long: `TpLearn keeps a guild's homework assignments in two read-only channels,
one for active work and one for work that has passed, and refreshes them as
due dates approach.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.WorksCmd())
	rootCmd.AddCommand(cli.MigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
