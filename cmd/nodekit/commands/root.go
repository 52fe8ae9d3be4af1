// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodekit/cmd/nodekit/handlers"
)

// Root returns the root command for the nodekit CLI.
//
// Global flags are bound once here and shared by every subcommand.
func Root() *cobra.Command {
	opts := &handlers.Options{}

	cmd := &cobra.Command{
		Use:           "nodekit",
		Short:         "Manage groups of cloud compute nodes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file")
	flags.StringVar(&opts.Provider, "provider", "", "Provider to use (hcloud, memory); overrides the config file")
	flags.StringVarP(&opts.Output, "output", "o", handlers.OutputTable, "Output format (table, json)")
	flags.StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the command")
	flags.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(Nodes(opts))
	cmd.AddCommand(Images(opts))
	cmd.AddCommand(Hardware(opts))
	cmd.AddCommand(Locations(opts))
	cmd.AddCommand(SecurityGroups(opts))
	cmd.AddCommand(Cleanup(opts))
	cmd.AddCommand(Version())

	return cmd
}
