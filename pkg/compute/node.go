package compute

// NodeStatus is the portable lifecycle status of a node.
type NodeStatus string

const (
	NodePending      NodeStatus = "PENDING"
	NodeRunning      NodeStatus = "RUNNING"
	NodeSuspended    NodeStatus = "SUSPENDED"
	NodeTerminated   NodeStatus = "TERMINATED"
	NodeError        NodeStatus = "ERROR"
	NodeUnrecognized NodeStatus = "UNRECOGNIZED"
)

// LoginCredentials grant access to a node.
type LoginCredentials struct {
	User             string `json:"user"`
	Password         string `json:"password,omitempty"`
	PrivateKey       string `json:"privateKey,omitempty"`
	AuthenticateSudo bool   `json:"authenticateSudo,omitempty"`
}

// HasPrivateKey reports whether key based authentication is possible.
func (c *LoginCredentials) HasPrivateKey() bool {
	return c != nil && c.PrivateKey != ""
}

// Node is a snapshot of a compute instance.
type Node struct {
	ID               string            `json:"id"`
	ProviderID       string            `json:"providerId"`
	Name             string            `json:"name"`
	Hostname         string            `json:"hostname,omitempty"`
	Group            string            `json:"group,omitempty"`
	Location         *Location         `json:"location,omitempty"`
	Status           NodeStatus        `json:"status"`
	BackendStatus    string            `json:"backendStatus,omitempty"`
	ImageID          string            `json:"imageId,omitempty"`
	OS               *OperatingSystem  `json:"os,omitempty"`
	Hardware         *Hardware         `json:"hardware,omitempty"`
	PublicAddresses  []string          `json:"publicAddresses,omitempty"`
	PrivateAddresses []string          `json:"privateAddresses,omitempty"`
	LoginPort        int               `json:"loginPort"`
	Credentials      *LoginCredentials `json:"credentials,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	UserMetadata     map[string]string `json:"userMetadata,omitempty"`
}

// WithCredentials returns a copy of the node carrying creds.
func (n *Node) WithCredentials(creds *LoginCredentials) *Node {
	cp := *n
	cp.Credentials = creds
	return &cp
}
