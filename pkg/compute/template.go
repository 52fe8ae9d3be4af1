package compute

import "time"

// TemplateOptions carries the provider independent knobs of node creation.
//
// Prerequisite resources follow one rule: an explicit identifier is looked
// up and reused; otherwise the matching AutoCreate flag lets the orchestrator
// create (or reuse) a resource it owns and may clean up later.
type TemplateOptions struct {
	LoginUser string
	Password  string

	// Key material. PublicKey is imported as a one-time key pair, KeyPairName
	// reuses an existing one, AutoCreateKeyPair generates a fresh pair.
	PublicKey         string
	PrivateKey        string
	KeyPairName       string
	AutoCreateKeyPair bool

	NetworkID         string
	SubnetID          string
	AutoCreateNetwork bool
	NetworkCIDR       string
	SubnetCIDR        string

	SecurityGroupIDs        []string
	AutoCreateSecurityGroup bool
	InboundPorts            []int

	UserData     string
	Tags         []string
	UserMetadata map[string]string

	// BlockOnPort holds a node back until its first public address (or
	// private, when it has none) accepts TCP connections on that port.
	// A node whose port stays closed for BlockOnPortTimeout counts as
	// failed. Zero disables the check.
	BlockOnPort        int
	BlockOnPortTimeout time.Duration
}

// Template selects what to boot, on which shape, where.
type Template struct {
	ImageID    string
	HardwareID string
	LocationID string
	Options    TemplateOptions
}
