package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodekit/cmd/nodekit/handlers"
)

// Images returns the command listing bootable images.
func Images(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "images",
		Short: "List available images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ListImages(cmd.Context(), *opts, cmd.OutOrStdout())
		},
	}
}

// Hardware returns the command listing hardware profiles.
func Hardware(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:     "hardware",
		Aliases: []string{"flavors", "server-types"},
		Short:   "List hardware profiles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ListHardware(cmd.Context(), *opts, cmd.OutOrStdout())
		},
	}
}

// Locations returns the command listing the provider, regions and zones.
func Locations(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "locations",
		Short: "List provider locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ListLocations(cmd.Context(), *opts, cmd.OutOrStdout())
		},
	}
}

// SecurityGroups returns the command listing security groups.
func SecurityGroups(opts *handlers.Options) *cobra.Command {
	var so handlers.SecurityGroupOptions

	cmd := &cobra.Command{
		Use:     "security-groups",
		Aliases: []string{"sg"},
		Short:   "List security groups",
		Long: `List security groups of a region, or of every region.

With --orphaned only the security groups nodekit created for --group that
no node uses anymore are shown. These are left behind when a cleanup after
node destruction failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ListSecurityGroups(cmd.Context(), *opts, cmd.OutOrStdout(), so)
		},
	}

	cmd.Flags().StringVar(&so.Region, "region", "", "Region to list (default: all regions)")
	cmd.Flags().StringVarP(&so.Group, "group", "g", "", "Node group owning the security groups")
	cmd.Flags().BoolVar(&so.Orphaned, "orphaned", false, "Only list orphaned security groups of --group")

	return cmd
}
