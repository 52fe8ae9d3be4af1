package compute

// IPPermission is one inbound rule of a security group.
type IPPermission struct {
	Protocol   string   `json:"protocol"`
	FromPort   int      `json:"fromPort"`
	ToPort     int      `json:"toPort"`
	CIDRBlocks []string `json:"cidrBlocks,omitempty"`
}

// SecurityGroup is a set of firewall rules shared by nodes.
type SecurityGroup struct {
	ID          string            `json:"id"`
	ProviderID  string            `json:"providerId"`
	Name        string            `json:"name"`
	NetworkID   string            `json:"networkId,omitempty"`
	Location    *Location         `json:"location,omitempty"`
	Permissions []IPPermission    `json:"permissions,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}
