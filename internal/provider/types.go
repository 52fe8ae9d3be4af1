package provider

import "time"

// ResourceKind names a kind of provider resource.
type ResourceKind string

const (
	KindInstance      ResourceKind = "instance"
	KindNetwork       ResourceKind = "network"
	KindSubnet        ResourceKind = "subnet"
	KindSecurityGroup ResourceKind = "security group"
	KindKeyPair       ResourceKind = "key pair"
)

// Status values of networks, subnets and security groups.
const (
	StatusPending   = "pending"
	StatusAvailable = "available"
	StatusFailed    = "failed"
)

// Status values of tasks.
const (
	TaskQueued  = "queued"
	TaskRunning = "running"
	TaskSuccess = "success"
	TaskError   = "error"
)

// Canonical task kinds. Clients translate their own command names into these.
const (
	TaskKindDeploy      = "deploy"
	TaskKindUndeploy    = "undeploy"
	TaskKindPowerOn     = "power_on"
	TaskKindPowerOff    = "power_off"
	TaskKindReboot      = "reboot"
	TaskKindReset       = "reset"
	TaskKindSnapshot    = "snapshot"
	TaskKindReconfigure = "reconfigure"
)

// Page is one page of a paginated listing. Next is empty on the last page.
type Page[T any] struct {
	Items []T
	Next  string
}

// ListOptions scopes a listing.
type ListOptions struct {
	// Region limits the listing to one region; empty means all.
	Region string
	// Zone limits the listing to one zone of Region; empty means all.
	Zone string
	// NetworkID limits subnet listings to one network.
	NetworkID string
	// LabelSelector filters by labels, e.g. "nodekit.io/group=web".
	LabelSelector string
	// Marker is the Next value of the previous page.
	Marker string
	// PageSize is a hint; zero lets the client choose.
	PageSize int
}

// Region is a provider region and its zones.
type Region struct {
	ID      string
	Name    string
	Country string // ISO 3166-1 alpha-2
	City    string
	Zones   []Zone
}

// Zone is an availability zone within a region.
type Zone struct {
	ID     string
	Name   string
	Region string
}

// Image is a bootable template as the vendor describes it.
type Image struct {
	ID           string
	Name         string
	Description  string
	OSFlavor     string
	OSVersion    string
	Architecture string
	Status       string
	// Region is empty for images available everywhere.
	Region      string
	DefaultUser string
	Deprecated  bool
	Labels      map[string]string
}

// Flavor is a compute shape.
type Flavor struct {
	ID           string
	Name         string
	Description  string
	Cores        int
	CPUSpeed     float64 // GHz, zero when unknown
	MemoryMB     int
	DiskGB       int
	LocalDisk    bool
	Architecture string
	Deprecated   bool
	// Regions lists where the flavor can be ordered; empty means all.
	Regions []string
}

// NIC is one network interface of an instance.
type NIC struct {
	ID        string
	NetworkID string
	SubnetID  string
	Addresses []string
}

// Instance is a compute instance.
type Instance struct {
	ID               string
	Name             string
	Region           string
	Zone             string
	ImageID          string
	FlavorID         string
	Status           string
	PublicIPs        []string
	PrivateIPs       []string
	NICs             []NIC
	SecurityGroupIDs []string
	KeyPairName      string
	Labels           map[string]string
	Created          time.Time
}

// Network is an isolated virtual network (VPC).
type Network struct {
	ID     string
	Name   string
	Region string
	CIDR   string
	Status string
	Labels map[string]string
}

// Subnet is an address range inside a network (VSwitch).
type Subnet struct {
	ID        string
	NetworkID string
	Name      string
	Region    string
	Zone      string
	CIDR      string
	Status    string
	Labels    map[string]string
}

// Rule is an inbound firewall rule.
type Rule struct {
	Protocol string
	FromPort int
	ToPort   int
	CIDRs    []string
}

// SecurityGroup is a set of inbound rules. NetworkID is empty for
// providers whose groups are not network scoped.
type SecurityGroup struct {
	ID        string
	Name      string
	Region    string
	NetworkID string
	Status    string
	Rules     []Rule
	Labels    map[string]string
}

// KeyPair is an imported SSH public key. Key pairs are addressed by name.
type KeyPair struct {
	ID          string
	Name        string
	Fingerprint string
	PublicKey   string
	Labels      map[string]string
}

// Task is an asynchronous provider operation.
type Task struct {
	ID         string
	Kind       string
	Command    string
	ResourceID string
	Status     string
	Started    time.Time
	Finished   time.Time
	Error      string
}

// CreateInstanceParams carries every resolved prerequisite of an instance.
type CreateInstanceParams struct {
	Name             string
	Region           string
	Zone             string
	ImageID          string
	FlavorID         string
	NetworkID        string
	SubnetID         string
	SecurityGroupIDs []string
	KeyPairName      string
	UserData         string
	Labels           map[string]string
}

type CreateNetworkParams struct {
	Name   string
	Region string
	CIDR   string
	Labels map[string]string
}

type CreateSubnetParams struct {
	NetworkID string
	Name      string
	Region    string
	Zone      string
	CIDR      string
	Labels    map[string]string
}

type CreateSecurityGroupParams struct {
	Name      string
	Region    string
	NetworkID string
	Rules     []Rule
	Labels    map[string]string
}

type ImportKeyPairParams struct {
	Name      string
	PublicKey string
	Labels    map[string]string
}
