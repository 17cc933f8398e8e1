package main

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rodizio",
		Short: "Pickup football roster server",
		Long: `Rodizio keeps the roster of a pickup football group: who is registered,
who is on the two teams in play and who is waiting in the queue, and
pushes every change to connected clients.`,
		SilenceUsage: true,
		// Running without a subcommand starts the server.
		RunE: runServe,
	}

	// Global flags
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/rodizio/config.yaml)")

	root.AddCommand(newServeCmd(), newDistributeCmd())
	return root
}

// Execute runs the root command
func Execute() error {
	return newRootCmd().Execute()
}
