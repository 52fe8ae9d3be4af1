package strategy

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/imamik/nodekit/internal/events"
	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/util/async"
	"github.com/imamik/nodekit/internal/util/labels"
	"github.com/imamik/nodekit/internal/util/naming"
	"github.com/imamik/nodekit/pkg/compute"
)

// BatchResult collects the outcome of node creations. It is safe for
// concurrent use and may be shared by several batches.
type BatchResult struct {
	mu    sync.Mutex
	good  map[string]*compute.Node
	bad   map[string]*compute.FailedNode
	names sets.Set[string]
}

// NewBatchResult returns an empty result.
func NewBatchResult() *BatchResult {
	return &BatchResult{
		good:  map[string]*compute.Node{},
		bad:   map[string]*compute.FailedNode{},
		names: sets.New[string](),
	}
}

func (r *BatchResult) succeed(node *compute.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.good[node.ID] = node
	r.names.Insert(node.Name)
}

func (r *BatchResult) fail(name string, node *compute.Node, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bad[name] = &compute.FailedNode{Name: name, Node: node, Err: err}
	r.names.Insert(name)
}

func (r *BatchResult) recorded(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.names.Has(name)
}

// Good returns the nodes that reached RUNNING, keyed by id.
func (r *BatchResult) Good() map[string]*compute.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.good)
}

// Bad returns the failed nodes, keyed by name.
func (r *BatchResult) Bad() map[string]*compute.FailedNode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.bad)
}

// CreateResult returns a snapshot of the result.
func (r *BatchResult) CreateResult() *compute.CreateResult {
	return &compute.CreateResult{Good: r.Good(), Bad: r.Bad()}
}

// Orchestrator creates groups of nodes together with their prerequisites.
type Orchestrator struct {
	deps Deps
	log  logr.Logger
}

// NewOrchestrator returns an Orchestrator. Missing collaborators of d are
// built from d.Client.
func NewOrchestrator(d Deps) *Orchestrator {
	d = d.withDefaults()
	return &Orchestrator{deps: d, log: d.Log.WithName("orchestrator")}
}

// CreateNodesInGroup creates count nodes of group from tmpl and records each
// of them in results.
//
// The returned error covers the batch as a whole: invalid input or a failure
// to resolve the prerequisites, after which everything created for the
// batch has been rolled back. Failures of individual nodes only show up in
// results.
func (o *Orchestrator) CreateNodesInGroup(ctx context.Context, group string, count int, tmpl compute.Template, results *BatchResult) error {
	if err := naming.ValidateGroup(group); err != nil {
		return err
	}
	if count <= 0 {
		return fmt.Errorf("node count must be positive, got %d", count)
	}
	if tmpl.ImageID == "" || tmpl.HardwareID == "" {
		return fmt.Errorf("template needs an image and a hardware profile")
	}
	if port := tmpl.Options.BlockOnPort; port < 0 || port > 65535 {
		return fmt.Errorf("invalid port %d to block on", port)
	}

	start := time.Now()
	providerName := o.deps.Client.Metadata().Name
	b := &batch{
		deps:    o.deps,
		group:   group,
		attempt: uuid.NewString(),
		tmpl:    tmpl,
		ledger:  &Ledger{},
	}
	log := o.log.WithValues("group", group, "attempt", b.attempt)
	o.deps.Observer.Event(events.Event{
		Type:    events.EventBatchStarted,
		Group:   group,
		Message: fmt.Sprintf("creating %d nodes", count),
	})

	if err := b.resolve(ctx); err != nil {
		if rbErr := rollback(ctx, o.deps, group, b.ledger.Resources()); rbErr != nil {
			log.Info("Warning: rollback after failed prerequisites is incomplete", "error", rbErr.Error())
		}
		err = fmt.Errorf("failed to prepare group %s: %w", group, err)
		o.deps.Recorder.ObserveOperation(providerName, "create_nodes", err, time.Since(start))
		o.deps.Observer.Event(events.Event{Type: events.EventBatchCompleted, Group: group, Error: err.Error()})
		return err
	}

	existing, err := o.deps.Lister.Instances(ctx, labels.ForGroup(group).String())
	if err != nil {
		log.V(1).Info("Could not list existing nodes, name clashes are unlikely but possible", "error", err.Error())
	}
	taken := sets.New[string]()
	for _, inst := range existing {
		taken.Insert(inst.Name)
	}
	names := naming.Nodes(group, count, taken)
	creds := b.credentials(ctx)

	log.Info("Creating nodes", "count", count, "region", b.pre.Region, "zone", b.pre.Zone)
	var (
		mu   sync.Mutex
		good int
	)
	tasks := make([]async.Task, len(names))
	for i, name := range names {
		tasks[i] = async.Task{
			Name: name,
			Func: func(ctx context.Context) error {
				node, err := b.createNode(ctx, name)
				if err != nil {
					results.fail(name, node, err)
					return err
				}
				node.Credentials = creds.copy()
				results.succeed(node)
				mu.Lock()
				good++
				mu.Unlock()
				return nil
			},
		}
	}
	var failures []error
	for _, r := range async.RunEach(ctx, o.deps.Pool, tasks) {
		if r.Err == nil {
			continue
		}
		failures = append(failures, fmt.Errorf("%s: %w", r.Name, r.Err))
		if !results.recorded(r.Name) {
			results.fail(r.Name, nil, r.Err)
		}
	}

	b.release(ctx, log, good > 0)

	bad := count - good
	o.deps.Recorder.RecordNodes(providerName, group, good, bad)
	o.deps.Recorder.ObserveOperation(providerName, "create_nodes", errors.Join(failures...), time.Since(start))
	completed := events.Event{
		Type:    events.EventBatchCompleted,
		Group:   group,
		Message: fmt.Sprintf("%d of %d nodes running", good, count),
	}
	if bad > 0 {
		completed.Error = errors.Join(failures...).Error()
	}
	o.deps.Observer.Event(completed)
	log.Info("Batch completed", "running", good, "failed", bad, "duration", time.Since(start).Round(time.Millisecond).String())
	return nil
}

// createNode creates one instance and waits for it to run. A node that does
// not come up is deleted again; its last snapshot, if any, is returned with
// the error.
func (b *batch) createNode(ctx context.Context, name string) (*compute.Node, error) {
	opts := b.opts()
	params := provider.CreateInstanceParams{
		Name:             name,
		Region:           b.pre.Region,
		Zone:             b.pre.Zone,
		ImageID:          b.tmpl.ImageID,
		FlavorID:         b.tmpl.HardwareID,
		NetworkID:        b.pre.NetworkID,
		SubnetID:         b.pre.SubnetID,
		SecurityGroupIDs: b.pre.SecurityGroupIDs,
		KeyPairName:      b.pre.KeyPairName,
		UserData:         opts.UserData,
		Labels: labels.NewLabelBuilder(b.group).
			Merge(userLabels(opts.UserMetadata)).
			WithAttempt(b.attempt).
			WithTags(opts.Tags).
			Build(),
	}

	b.deps.Observer.Event(events.Event{Type: events.EventNodeCreating, Group: b.group, Kind: "node", Resource: name})
	id, err := b.deps.Client.CreateInstance(ctx, params)
	if err != nil {
		err = fmt.Errorf("failed to create instance %s: %w", name, err)
		b.nodeFailed(name, err)
		return nil, err
	}

	ok, err := b.deps.Poller.WaitForNodeRunning(ctx, id)
	if err == nil && !ok {
		err = &StateError{Op: "wait for node running", ID: id, Err: errNotReached}
	}
	if err != nil {
		return b.discard(ctx, name, id, b.snapshot(ctx, id), err)
	}

	node := b.snapshot(ctx, id)
	if node == nil {
		err := fmt.Errorf("instance %s vanished after reaching RUNNING", id)
		b.nodeFailed(name, err)
		return nil, err
	}
	if err := b.awaitPort(ctx, node); err != nil {
		return b.discard(ctx, name, id, node, err)
	}
	b.deps.Observer.Event(events.Event{Type: events.EventNodeRunning, Group: b.group, Kind: "node", Resource: id})
	return node, nil
}

// discard deletes a node that did not come up and records the failure.
func (b *batch) discard(ctx context.Context, name, id string, node *compute.Node, err error) (*compute.Node, error) {
	if rmErr := compensate(ctx, b.deps, b.group, provider.KindInstance, id); rmErr != nil {
		b.deps.Log.Info("Warning: failed to delete node that did not come up", "node", name, "id", id, "error", rmErr.Error())
	}
	b.nodeFailed(name, err)
	return node, err
}

// awaitPort blocks until the port named by BlockOnPort is reachable.
func (b *batch) awaitPort(ctx context.Context, node *compute.Node) error {
	opts := b.opts()
	if opts.BlockOnPort == 0 {
		return nil
	}
	host := firstAddress(node)
	if host == "" {
		return fmt.Errorf("node %s has no address to probe port %d on", node.ID, opts.BlockOnPort)
	}
	timeout := opts.BlockOnPortTimeout
	if timeout <= 0 {
		timeout = b.deps.Poller.Timeouts().NodeRunning
	}
	ok, err := b.deps.Poller.WaitForPort(ctx, host, opts.BlockOnPort, timeout)
	if err == nil && !ok {
		err = &StateError{Op: fmt.Sprintf("wait for port %d on", opts.BlockOnPort), ID: node.ID, Err: errNotReached}
	}
	return err
}

func firstAddress(n *compute.Node) string {
	if len(n.PublicAddresses) > 0 {
		return n.PublicAddresses[0]
	}
	if len(n.PrivateAddresses) > 0 {
		return n.PrivateAddresses[0]
	}
	return ""
}

func (b *batch) snapshot(ctx context.Context, id string) *compute.Node {
	inst, err := b.deps.Client.GetInstance(ctx, id)
	if err != nil || inst == nil {
		return nil
	}
	return b.deps.Mapper.Node(ctx, *inst)
}

func (b *batch) nodeFailed(name string, err error) {
	b.deps.Observer.Event(events.Event{Type: events.EventNodeFailed, Group: b.group, Kind: "node", Resource: name, Error: err.Error()})
}

// release removes the one-time resources of the batch and, when no node came
// up, the shared resources it created.
func (b *batch) release(ctx context.Context, log logr.Logger, anyRunning bool) {
	if err := rollback(ctx, b.deps, b.group, b.ledger.OneTime()); err != nil {
		log.Info("Warning: failed to delete one-time resources", "error", err.Error())
	}
	if anyRunning {
		return
	}
	if err := rollback(ctx, b.deps, b.group, b.ledger.Shared()); err != nil {
		log.Info("Warning: failed to delete shared resources of a failed batch", "error", err.Error())
	}
}

// loginCredentials are shared by every node of a batch.
type loginCredentials compute.LoginCredentials

func (c *loginCredentials) copy() *compute.LoginCredentials {
	cp := compute.LoginCredentials(*c)
	return &cp
}

func (b *batch) credentials(ctx context.Context) *loginCredentials {
	opts := b.opts()
	user := opts.LoginUser
	if user == "" {
		if img := b.deps.Mapper.LookupImage(ctx, b.tmpl.ImageID); img != nil {
			user = img.DefaultUser
		}
	}
	if user == "" {
		user = b.deps.Client.Metadata().DefaultLoginUser
	}
	if user == "" {
		user = "root"
	}
	return &loginCredentials{
		User:             user,
		Password:         opts.Password,
		PrivateKey:       b.pre.PrivateKey,
		AuthenticateSudo: user != "root" && opts.Password != "",
	}
}

// userLabels drops keys in the nodekit namespace from caller metadata.
func userLabels(metadata map[string]string) map[string]string {
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if !strings.HasPrefix(k, "nodekit.io/") {
			out[k] = v
		}
	}
	return out
}
