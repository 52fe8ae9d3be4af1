package compute

import "context"

// FailedNode is a node of a batch that could not be brought to RUNNING.
// Node is nil when the failure happened before the provider returned an id.
type FailedNode struct {
	Name string
	Node *Node
	Err  error
}

func (f *FailedNode) Error() string {
	return f.Name + ": " + f.Err.Error()
}

func (f *FailedNode) Unwrap() error {
	return f.Err
}

// CreateResult is the outcome of a batch creation. Nodes are keyed by id
// (good) or by name (bad).
type CreateResult struct {
	Good map[string]*Node
	Bad  map[string]*FailedNode
}

// ComputeService is the portable interface callers program against.
type ComputeService interface {
	// CreateNodesInGroup creates count nodes named after group. Individual
	// node failures are reported in CreateResult.Bad; the error is reserved
	// for failures that prevent the batch from starting.
	CreateNodesInGroup(ctx context.Context, group string, count int, template Template) (*CreateResult, error)

	ListNodes(ctx context.Context) ([]*Node, error)
	ListNodesInGroup(ctx context.Context, group string) ([]*Node, error)
	// GetNode returns nil when the node does not exist.
	GetNode(ctx context.Context, id string) (*Node, error)

	// DestroyNode removes the node and the orphaned resources it owned.
	DestroyNode(ctx context.Context, id string) error
	DestroyNodesInGroup(ctx context.Context, group string) ([]*Node, error)

	RebootNode(ctx context.Context, id string) error
	ResumeNode(ctx context.Context, id string) error
	SuspendNode(ctx context.Context, id string) error

	ListImages(ctx context.Context) ([]*Image, error)
	ListHardwareProfiles(ctx context.Context) ([]*Hardware, error)
	ListLocations(ctx context.Context) ([]*Location, error)

	// ListTasks returns the task history of a resource, most recent first.
	ListTasks(ctx context.Context, resourceID string) ([]Task, error)
}
