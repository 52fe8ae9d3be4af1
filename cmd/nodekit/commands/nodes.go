package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodekit/cmd/nodekit/handlers"
)

// Nodes returns the parent command of node lifecycle operations.
func Nodes(opts *handlers.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "nodes",
		Aliases: []string{"node"},
		Short:   "Create, inspect and destroy nodes",
	}

	cmd.AddCommand(nodesList(opts))
	cmd.AddCommand(nodesGet(opts))
	cmd.AddCommand(nodesCreate(opts))
	cmd.AddCommand(nodesDestroy(opts))
	cmd.AddCommand(nodesPower(opts, handlers.PowerReboot, "Reboot a node"))
	cmd.AddCommand(nodesPower(opts, handlers.PowerSuspend, "Power off a node"))
	cmd.AddCommand(nodesPower(opts, handlers.PowerResume, "Power on a suspended node"))
	cmd.AddCommand(nodesTasks(opts))

	return cmd
}

func nodesList(opts *handlers.Options) *cobra.Command {
	var lo handlers.NodeListOptions

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List nodes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ListNodes(cmd.Context(), *opts, cmd.OutOrStdout(), lo)
		},
	}

	cmd.Flags().StringVarP(&lo.Group, "group", "g", "", "Only list nodes of this group")
	cmd.Flags().BoolVar(&lo.BestEffort, "best-effort", false, "List the regions that answer and report the ones that fail")

	return cmd
}

func nodesGet(opts *handlers.Options) *cobra.Command {
	var showCredentials bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.GetNode(cmd.Context(), *opts, cmd.OutOrStdout(), args[0], showCredentials)
		},
	}

	cmd.Flags().BoolVar(&showCredentials, "show-credentials", false, "Include password and private key")

	return cmd
}

func nodesCreate(opts *handlers.Options) *cobra.Command {
	var co handlers.CreateOptions

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a group of nodes",
		Long: `Create --count nodes in --group.

Nodes are named after the group with a random suffix. Networks, security
groups and key pairs are reused when ids are given, otherwise the --auto-*
flags let nodekit create them. Created resources are labelled with the group
and removed again when the last node using them is destroyed.

Nodes that fail to boot are destroyed; the command reports them and exits
non-zero while still printing the nodes that came up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.CreateNodes(cmd.Context(), *opts, cmd.OutOrStdout(), co)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&co.Group, "group", "g", "", "Node group name (required)")
	f.IntVarP(&co.Count, "count", "n", 1, "Number of nodes to create")
	f.StringVar(&co.Image, "image", "", "Image id (default: defaults.image from the config)")
	f.StringVar(&co.Hardware, "hardware", "", "Hardware profile id (default: defaults.hardware)")
	f.StringVar(&co.Location, "location", "", "Region or zone id (default: defaults.location)")
	f.StringVar(&co.LoginUser, "login-user", "", "Login user, overrides the image default")
	f.StringVar(&co.KeyPairName, "key-pair", "", "Existing key pair to install")
	f.StringVar(&co.PublicKeyFile, "public-key", "", "Public key file imported as a one-time key pair")
	f.BoolVar(&co.AutoKeyPair, "auto-key-pair", false, "Generate a one-time key pair")
	f.StringVar(&co.NetworkID, "network", "", "Existing network id")
	f.StringVar(&co.SubnetID, "subnet", "", "Existing subnet id")
	f.BoolVar(&co.AutoNetwork, "auto-network", false, "Create or reuse a network owned by the group")
	f.StringSliceVar(&co.SecurityGroupIDs, "security-group", nil, "Existing security group id (repeatable)")
	f.BoolVar(&co.AutoSecurityGroup, "auto-security-group", false, "Create or reuse a security group owned by the group")
	f.IntSliceVar(&co.InboundPorts, "port", nil, "Inbound TCP port of an auto security group (repeatable, default: 22)")
	f.StringVar(&co.UserDataFile, "user-data", "", "Cloud-init user data file")
	f.StringSliceVar(&co.Tags, "tag", nil, "Tag to attach (repeatable)")
	f.StringToStringVar(&co.Metadata, "metadata", nil, "User metadata as key=value pairs")
	f.IntVar(&co.BlockOnPort, "block-on-port", 0, "Wait until this TCP port of each node accepts connections")
	f.DurationVar(&co.BlockOnPortTimeout, "block-on-port-timeout", 0, "How long to wait for --block-on-port (default: the node running timeout)")
	f.BoolVar(&co.ShowCredentials, "show-credentials", false, "Include passwords and private keys in the output")

	_ = cmd.MarkFlagRequired("group")

	return cmd
}

func nodesDestroy(opts *handlers.Options) *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "destroy [id]",
		Short: "Destroy a node or a whole group",
		Long: `Destroy one node by id, or every node of --group.

Networks, subnets and security groups nodekit created for the nodes are
deleted once no remaining node uses them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			return handlers.DestroyNodes(cmd.Context(), *opts, cmd.OutOrStdout(), id, group)
		},
	}

	cmd.Flags().StringVarP(&group, "group", "g", "", "Destroy every node of this group")

	return cmd
}

func nodesPower(opts *handlers.Options, op, short string) *cobra.Command {
	return &cobra.Command{
		Use:   op + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.PowerNode(cmd.Context(), *opts, cmd.OutOrStdout(), op, args[0])
		},
	}
}

func nodesTasks(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks <id>",
		Short: "Show the task history of a node, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.ListTasks(cmd.Context(), *opts, cmd.OutOrStdout(), args[0])
		},
	}
}
