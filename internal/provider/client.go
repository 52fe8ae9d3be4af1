package provider

import (
	"context"

	"github.com/imamik/nodekit/pkg/compute"
)

// CatalogClient lists what can be ordered.
type CatalogClient interface {
	ListRegions(ctx context.Context) ([]Region, error)
	ListImages(ctx context.Context, opts ListOptions) (Page[Image], error)
	ListFlavors(ctx context.Context, opts ListOptions) (Page[Flavor], error)
}

// InstanceClient manages compute instances. The returned strings of the
// mutating calls are task ids, empty when the provider has none.
type InstanceClient interface {
	CreateInstance(ctx context.Context, params CreateInstanceParams) (string, error)
	GetInstance(ctx context.Context, id string) (*Instance, error)
	ListInstances(ctx context.Context, opts ListOptions) (Page[Instance], error)
	DeleteInstance(ctx context.Context, id string) (string, error)
	StartInstance(ctx context.Context, id string) (string, error)
	StopInstance(ctx context.Context, id string) (string, error)
	RebootInstance(ctx context.Context, id string) (string, error)
}

// NetworkClient manages networks and their subnets.
type NetworkClient interface {
	CreateNetwork(ctx context.Context, params CreateNetworkParams) (string, error)
	GetNetwork(ctx context.Context, id string) (*Network, error)
	ListNetworks(ctx context.Context, opts ListOptions) (Page[Network], error)
	DeleteNetwork(ctx context.Context, id string) error

	CreateSubnet(ctx context.Context, params CreateSubnetParams) (string, error)
	GetSubnet(ctx context.Context, id string) (*Subnet, error)
	ListSubnets(ctx context.Context, opts ListOptions) (Page[Subnet], error)
	DeleteSubnet(ctx context.Context, id string) error
}

// SecurityGroupClient manages security groups.
type SecurityGroupClient interface {
	CreateSecurityGroup(ctx context.Context, params CreateSecurityGroupParams) (string, error)
	GetSecurityGroup(ctx context.Context, id string) (*SecurityGroup, error)
	ListSecurityGroups(ctx context.Context, opts ListOptions) (Page[SecurityGroup], error)
	DeleteSecurityGroup(ctx context.Context, id string) error
}

// KeyPairClient manages SSH key pairs by name.
type KeyPairClient interface {
	ImportKeyPair(ctx context.Context, params ImportKeyPairParams) (*KeyPair, error)
	GetKeyPair(ctx context.Context, name string) (*KeyPair, error)
	ListKeyPairs(ctx context.Context, opts ListOptions) (Page[KeyPair], error)
	DeleteKeyPair(ctx context.Context, name string) error
}

// TaskClient reads asynchronous operation history.
type TaskClient interface {
	GetTask(ctx context.Context, id string) (*Task, error)
	ListTasks(ctx context.Context, resourceID string, opts ListOptions) (Page[Task], error)
}

// Client is the complete vendor client consumed by the compute core.
type Client interface {
	CatalogClient
	InstanceClient
	NetworkClient
	SecurityGroupClient
	KeyPairClient
	TaskClient

	Metadata() Metadata
}

// Metadata describes how to read a client's vendor values.
type Metadata struct {
	// Name identifies the provider, e.g. "hcloud".
	Name string
	// NodeStatus maps vendor instance statuses to portable ones.
	NodeStatus map[string]compute.NodeStatus
	// ImageStatus maps vendor image statuses to portable ones.
	ImageStatus map[string]compute.ImageStatus
	// OSAliases maps vendor platform strings to OS families when the
	// family name does not appear in the string.
	OSAliases map[string]compute.OSFamily
	// ZoneScoped reports that instances must be listed per zone.
	ZoneScoped bool
	// DefaultLoginUser is used when neither template nor image names one.
	DefaultLoginUser string
	// LoginPort is the SSH port of new nodes.
	LoginPort int
}
