// Package service composes the compute core into a compute.ComputeService.
//
// A Service owns one provider.Client and wires the mapper, the pollers, the
// orchestration strategies and the credential store around it. It is the
// only type callers outside internal/ need.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/nodekit/internal/compute/mapper"
	"github.com/imamik/nodekit/internal/compute/predicates"
	"github.com/imamik/nodekit/internal/compute/strategy"
	"github.com/imamik/nodekit/internal/config"
	"github.com/imamik/nodekit/internal/credstore"
	"github.com/imamik/nodekit/internal/events"
	"github.com/imamik/nodekit/internal/metrics"
	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/util/async"
	"github.com/imamik/nodekit/pkg/compute"
)

var _ compute.ComputeService = (*Service)(nil)

// Service implements compute.ComputeService on top of a provider.Client.
type Service struct {
	client   provider.Client
	meta     provider.Metadata
	deps     strategy.Deps
	orch     *strategy.Orchestrator
	cleaner  *strategy.Cleaner
	creds    credstore.Store
	defaults config.DefaultsConfig
	log      logr.Logger
}

type options struct {
	pool       *async.Pool
	timeouts   *config.Timeouts
	creds      credstore.Store
	observer   events.Observer
	recorder   *metrics.Recorder
	log        logr.Logger
	defaults   config.DefaultsConfig
	catalogTTL time.Duration
}

// Option configures a Service.
type Option func(*options)

// WithPool bounds the concurrency of batch creation and listings. Without
// it every fan-out runs unbounded.
func WithPool(pool *async.Pool) Option {
	return func(o *options) { o.pool = pool }
}

// WithTimeouts replaces the timeouts read from the environment.
func WithTimeouts(t *config.Timeouts) Option {
	return func(o *options) { o.timeouts = t }
}

// WithCredentialStore keeps node credentials in store instead of process
// memory.
func WithCredentialStore(store credstore.Store) Option {
	return func(o *options) { o.creds = store }
}

// WithObserver receives lifecycle events.
func WithObserver(obs events.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithRecorder records metrics.
func WithRecorder(r *metrics.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithDefaults fills template fields callers leave empty.
func WithDefaults(d config.DefaultsConfig) Option {
	return func(o *options) { o.defaults = d }
}

// WithCatalogTTL sets how long images, hardware and locations are cached.
func WithCatalogTTL(ttl time.Duration) Option {
	return func(o *options) { o.catalogTTL = ttl }
}

// New returns a Service for client.
func New(client provider.Client, opts ...Option) *Service {
	o := options{log: logr.Discard(), observer: events.Nop(), catalogTTL: mapper.DefaultCatalogTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeouts == nil {
		o.timeouts = config.LoadTimeouts()
	}
	if o.creds == nil {
		o.creds = credstore.NewMemoryStore()
	}

	log := o.log.WithName("compute")
	meta := client.Metadata()
	m := mapper.New(meta, strategy.NewCatalog(client), mapper.WithLogger(log), mapper.WithTTL(o.catalogTTL))
	deps := strategy.Deps{
		Client: client,
		Mapper: m,
		Poller: predicates.NewPoller(client,
			predicates.WithTimeouts(o.timeouts),
			predicates.WithRecorder(o.recorder),
			predicates.WithLogger(log),
		),
		Lister:   strategy.NewLister(client, o.pool, m),
		Pool:     o.pool,
		Observer: o.observer,
		Recorder: o.recorder,
		Log:      log,
	}

	return &Service{
		client:   client,
		meta:     meta,
		deps:     deps,
		orch:     strategy.NewOrchestrator(deps),
		cleaner:  strategy.NewCleaner(deps),
		creds:    o.creds,
		defaults: o.defaults,
		log:      log.WithValues("provider", meta.Name),
	}
}

// Provider returns the name of the underlying provider.
func (s *Service) Provider() string {
	return s.meta.Name
}

// Close releases the credential store.
func (s *Service) Close() error {
	return s.creds.Close()
}

// CreateNodesInGroup creates count nodes of group. Credentials of the nodes
// that came up are kept in the credential store.
func (s *Service) CreateNodesInGroup(ctx context.Context, group string, count int, tmpl compute.Template) (*compute.CreateResult, error) {
	tmpl = s.applyDefaults(tmpl)
	results := strategy.NewBatchResult()
	if err := s.orch.CreateNodesInGroup(ctx, group, count, tmpl, results); err != nil {
		return nil, err
	}

	res := results.CreateResult()
	for id, n := range res.Good {
		if n.Credentials == nil {
			continue
		}
		if err := s.creds.Put(ctx, id, n.Credentials); err != nil {
			s.log.Info("Warning: failed to store node credentials", "node", id, "error", err.Error())
		}
	}
	return res, nil
}

func (s *Service) applyDefaults(tmpl compute.Template) compute.Template {
	d := s.defaults
	if tmpl.ImageID == "" {
		tmpl.ImageID = d.Image
	}
	if tmpl.HardwareID == "" {
		tmpl.HardwareID = d.Hardware
	}
	if tmpl.LocationID == "" {
		tmpl.LocationID = d.Location
	}
	if tmpl.Options.LoginUser == "" {
		tmpl.Options.LoginUser = d.LoginUser
	}
	if tmpl.Options.NetworkCIDR == "" {
		tmpl.Options.NetworkCIDR = d.NetworkCIDR
	}
	if tmpl.Options.SubnetCIDR == "" {
		tmpl.Options.SubnetCIDR = d.SubnetCIDR
	}
	return tmpl
}

func (s *Service) ListNodes(ctx context.Context) (nodes []*compute.Node, err error) {
	defer s.observe("list_nodes", time.Now(), &err)
	nodes, err = s.deps.Lister.ListNodes(ctx)
	if err != nil {
		return nil, err
	}
	return s.withCredentials(ctx, nodes), nil
}

func (s *Service) ListNodesInGroup(ctx context.Context, group string) (nodes []*compute.Node, err error) {
	defer s.observe("list_nodes", time.Now(), &err)
	nodes, err = s.deps.Lister.ListNodesInGroup(ctx, group)
	if err != nil {
		return nil, err
	}
	return s.withCredentials(ctx, nodes), nil
}

// ListNodesBestEffort lists the nodes of group, or every node when group is
// empty, from the regions and zones that answer. The scopes that failed are
// returned alongside and logged; only failing to list the regions is an
// error.
func (s *Service) ListNodesBestEffort(ctx context.Context, group string) (nodes []*compute.Node, failed []strategy.ScopeError[string], err error) {
	defer s.observe("list_nodes", time.Now(), &err)
	nodes, failed, err = s.deps.Lister.ListNodesBestEffort(ctx, group)
	if err != nil {
		return nil, nil, err
	}
	if len(failed) > 0 {
		s.log.Info("Warning: some scopes could not be listed", "failed", len(failed), "error", strategy.JoinScopeErrors(failed).Error())
	}
	return s.withCredentials(ctx, nodes), failed, nil
}

// GetNode returns nil when the node does not exist.
func (s *Service) GetNode(ctx context.Context, id string) (node *compute.Node, err error) {
	defer s.observe("get_node", time.Now(), &err)
	inst, err := s.client.GetInstance(ctx, id)
	if err != nil {
		if provider.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get node %s: %w", id, err)
	}
	if inst == nil {
		return nil, nil
	}
	return s.withCredentials(ctx, []*compute.Node{s.deps.Mapper.Node(ctx, *inst)})[0], nil
}

// DestroyNode destroys the node and the owned resources it leaves orphaned.
// Failing to clean up those resources is logged, not returned.
func (s *Service) DestroyNode(ctx context.Context, id string) (err error) {
	defer s.observe("destroy_node", time.Now(), &err)
	done, err := s.cleaner.CleanupNode(ctx, id)
	if err != nil {
		return err
	}
	if !done {
		s.log.Info("Warning: node destroyed but some of its resources are left behind", "node", id)
	}
	s.forgetCredentials(ctx, id)
	return nil
}

// DestroyNodesInGroup destroys every node of group. It returns the nodes
// that were destroyed, together with the errors of those that were not.
func (s *Service) DestroyNodesInGroup(ctx context.Context, group string) (nodes []*compute.Node, err error) {
	defer s.observe("destroy_nodes", time.Now(), &err)
	destroyed, err := s.cleaner.DestroyNodesInGroup(ctx, group)
	nodes = make([]*compute.Node, 0, len(destroyed))
	for _, inst := range destroyed {
		n := s.deps.Mapper.Node(ctx, inst)
		n.Status = compute.NodeTerminated
		nodes = append(nodes, n)
		s.forgetCredentials(ctx, inst.ID)
	}
	return nodes, err
}

func (s *Service) RebootNode(ctx context.Context, id string) error {
	return s.power(ctx, "reboot_node", id, s.client.RebootInstance, s.deps.Poller.WaitForNodeRunning)
}

func (s *Service) ResumeNode(ctx context.Context, id string) error {
	return s.power(ctx, "resume_node", id, s.client.StartInstance, s.deps.Poller.WaitForNodeRunning)
}

func (s *Service) SuspendNode(ctx context.Context, id string) error {
	return s.power(ctx, "suspend_node", id, s.client.StopInstance, s.deps.Poller.WaitForNodeSuspended)
}

type waitFunc func(ctx context.Context, id string) (bool, error)

// power runs a power operation, waits for its task when the provider
// returns one, then waits for the node to settle.
func (s *Service) power(ctx context.Context, op, id string, call func(context.Context, string) (string, error), wait waitFunc) (err error) {
	defer s.observe(op, time.Now(), &err)
	defer func() {
		event := events.Event{Type: events.EventNodePower, Kind: "node", Resource: id, Message: op}
		if err != nil {
			event.Error = err.Error()
		}
		s.deps.Observer.Event(event)
	}()

	taskID, err := call(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", opVerb(op), id, err)
	}
	if taskID != "" {
		ok, err := s.deps.Poller.WaitForTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("failed to %s %s: %w", opVerb(op), id, err)
		}
		if !ok {
			return &strategy.StateError{Op: "wait for task", ID: taskID, Err: fmt.Errorf("%s did not finish", op)}
		}
	}
	ok, err := wait(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", opVerb(op), id, err)
	}
	if !ok {
		return &strategy.StateError{Op: opVerb(op), ID: id, Err: fmt.Errorf("node did not settle in time")}
	}
	return nil
}

func opVerb(op string) string {
	switch op {
	case "reboot_node":
		return "reboot node"
	case "resume_node":
		return "resume node"
	case "suspend_node":
		return "suspend node"
	}
	return op
}

func (s *Service) ListImages(ctx context.Context) (imgs []*compute.Image, err error) {
	defer s.observe("list_images", time.Now(), &err)
	return s.deps.Lister.ListImages(ctx)
}

func (s *Service) ListHardwareProfiles(ctx context.Context) (hw []*compute.Hardware, err error) {
	defer s.observe("list_hardware", time.Now(), &err)
	return s.deps.Lister.ListHardware(ctx)
}

func (s *Service) ListLocations(ctx context.Context) (locs []*compute.Location, err error) {
	defer s.observe("list_locations", time.Now(), &err)
	return s.deps.Lister.ListLocations(ctx)
}

func (s *Service) ListTasks(ctx context.Context, resourceID string) (tasks []compute.Task, err error) {
	defer s.observe("list_tasks", time.Now(), &err)
	return s.deps.Lister.ListTasks(ctx, resourceID)
}

// ListSecurityGroups lists the security groups of region, or of every region
// when region is empty.
func (s *Service) ListSecurityGroups(ctx context.Context, region string) (groups []*compute.SecurityGroup, err error) {
	defer s.observe("list_security_groups", time.Now(), &err)
	return s.deps.Lister.ListSecurityGroups(ctx, region)
}

// FindOrphanedSecurityGroups lists the security groups nodekit created for
// group that no live node uses anymore.
func (s *Service) FindOrphanedSecurityGroups(ctx context.Context, region, group string) (groups []*compute.SecurityGroup, err error) {
	defer s.observe("find_orphans", time.Now(), &err)
	return s.cleaner.FindOrphanedSecurityGroups(ctx, region, group)
}

// SweepGroup removes the owned resources of group that outlived their nodes,
// or only reports them when dryRun is set.
func (s *Service) SweepGroup(ctx context.Context, group string, dryRun bool) (orphans []strategy.Orphan, err error) {
	defer s.observe("sweep_group", time.Now(), &err)
	orphans, done, err := s.cleaner.SweepGroup(ctx, group, dryRun)
	if err != nil {
		return nil, err
	}
	if !done {
		return orphans, fmt.Errorf("some orphaned resources of group %s could not be deleted", group)
	}
	return orphans, nil
}

// RefreshCatalog drops the cached images, hardware profiles and locations.
func (s *Service) RefreshCatalog() {
	s.deps.Mapper.Invalidate()
}

func (s *Service) observe(op string, start time.Time, err *error) {
	s.deps.Recorder.ObserveOperation(s.meta.Name, op, *err, time.Since(start))
}

func (s *Service) withCredentials(ctx context.Context, nodes []*compute.Node) []*compute.Node {
	for i, n := range nodes {
		creds, err := s.creds.Get(ctx, n.ID)
		if err != nil {
			s.log.V(1).Info("Could not read node credentials", "node", n.ID, "error", err.Error())
			continue
		}
		if creds != nil {
			nodes[i] = n.WithCredentials(creds)
		}
	}
	return nodes
}

func (s *Service) forgetCredentials(ctx context.Context, id string) {
	if err := s.creds.Delete(ctx, id); err != nil {
		s.log.Info("Warning: failed to delete node credentials", "node", id, "error", err.Error())
	}
}
