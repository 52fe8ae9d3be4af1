package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodekit/cmd/nodekit/handlers"
)

// Cleanup returns the command sweeping resources a node group left behind.
func Cleanup(opts *handlers.Options) *cobra.Command {
	var (
		group  string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete resources orphaned by a node group",
		Long: `Delete the networks, subnets, security groups and one-time key pairs
nodekit created for a node group that no live node uses anymore.

Use --dry-run to list them without deleting anything.`,
		Example: `  # See what would be removed
  nodekit cleanup --group web --dry-run

  # Remove it
  nodekit cleanup --group web`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Cleanup(cmd.Context(), *opts, cmd.OutOrStdout(), group, dryRun)
		},
	}

	cmd.Flags().StringVarP(&group, "group", "g", "", "Node group to clean up")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List orphaned resources without deleting them")
	_ = cmd.MarkFlagRequired("group")

	return cmd
}
