// Package fake implements an in-memory provider.Client.
//
// The fake keeps every resource in process memory, walks new instances
// through a short boot sequence and lets tests script failures per
// operation and scope. It backs the unit tests of the compute core and the
// "memory" provider of the CLI.
package fake

import (
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/util/labels"
	"github.com/imamik/nodekit/pkg/compute"
)

// Vendor instance statuses used by the fake.
const (
	StatusProvisioning = "provisioning"
	StatusRunning      = "running"
	StatusStopped      = "stopped"
	StatusError        = "error"
	StatusTerminated   = "terminated"
)

var _ provider.Client = (*Provider)(nil)

// Name is the provider name reported in Metadata.
const Name = "memory"

// Resource identifies a resource the fake created or deleted.
type Resource struct {
	Kind provider.ResourceKind
	ID   string
}

type instanceState struct {
	inst      provider.Instance
	bootPolls int
	final     string
}

// Provider is an in-memory provider.Client. The zero value is not usable;
// call New.
type Provider struct {
	mu sync.Mutex

	meta       provider.Metadata
	regions    []provider.Region
	images     []provider.Image
	flavors    []provider.Flavor
	pageSize   int
	bootPolls  int
	bootStatus func(provider.CreateInstanceParams) string
	now        func() time.Time

	instances      map[string]*instanceState
	instanceIDs    []string
	networks       *store[provider.Network]
	subnets        *store[provider.Subnet]
	securityGroups *store[provider.SecurityGroup]
	keyPairs       *store[provider.KeyPair]
	tasks          []provider.Task
	pendingPolls   map[string]int

	created  []Resource
	deleted  []Resource
	calls    map[string]int
	failures map[string][]failure
	addr     int
}

type failure struct {
	err    error
	always bool
}

// Option configures a Provider.
type Option func(*Provider)

// WithRegions replaces the default regions.
func WithRegions(regions ...provider.Region) Option {
	return func(p *Provider) { p.regions = regions }
}

// WithImages replaces the default image catalog.
func WithImages(images ...provider.Image) Option {
	return func(p *Provider) { p.images = images }
}

// WithFlavors replaces the default flavor catalog.
func WithFlavors(flavors ...provider.Flavor) Option {
	return func(p *Provider) { p.flavors = flavors }
}

// WithPageSize makes every listing paginate by n items.
func WithPageSize(n int) Option {
	return func(p *Provider) { p.pageSize = n }
}

// WithZoneScoped makes instance listings require a zone.
func WithZoneScoped(zoneScoped bool) Option {
	return func(p *Provider) { p.meta.ZoneScoped = zoneScoped }
}

// WithBootPolls sets how many GetInstance calls a new instance stays
// provisioning for.
func WithBootPolls(n int) Option {
	return func(p *Provider) { p.bootPolls = n }
}

// WithBootStatus decides the status a new instance settles in.
func WithBootStatus(fn func(provider.CreateInstanceParams) string) Option {
	return func(p *Provider) { p.bootStatus = fn }
}

// WithClock replaces time.Now for task timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// New returns a fake provider with a small default catalog.
func New(opts ...Option) *Provider {
	p := &Provider{
		meta: provider.Metadata{
			Name: Name,
			NodeStatus: map[string]compute.NodeStatus{
				StatusProvisioning: compute.NodePending,
				StatusRunning:      compute.NodeRunning,
				StatusStopped:      compute.NodeSuspended,
				StatusError:        compute.NodeError,
				StatusTerminated:   compute.NodeTerminated,
			},
			ImageStatus: map[string]compute.ImageStatus{
				"available": compute.ImageAvailable,
				"creating":  compute.ImagePending,
				"deleted":   compute.ImageDeleted,
				"error":     compute.ImageError,
			},
			OSAliases: map[string]compute.OSFamily{
				"penguin": compute.OSLinux,
			},
			DefaultLoginUser: "root",
			LoginPort:        22,
		},
		regions:        DefaultRegions(),
		images:         DefaultImages(),
		flavors:        DefaultFlavors(),
		bootPolls:      1,
		now:            time.Now,
		instances:      map[string]*instanceState{},
		networks:       newStore[provider.Network](),
		subnets:        newStore[provider.Subnet](),
		securityGroups: newStore[provider.SecurityGroup](),
		keyPairs:       newStore[provider.KeyPair](),
		pendingPolls:   map[string]int{},
		calls:          map[string]int{},
		failures:       map[string][]failure{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Metadata implements provider.Client.
func (p *Provider) Metadata() provider.Metadata {
	return p.meta
}

// FailNext makes the next call of op fail with err. op is a method name such
// as "CreateInstance", optionally scoped as "ListInstances:<region>" or
// "ListInstances:<region>/<zone>".
func (p *Provider) FailNext(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = append(p.failures[op], failure{err: err})
}

// FailAlways makes every call of op fail with err.
func (p *Provider) FailAlways(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = append(p.failures[op], failure{err: err, always: true})
}

// Calls returns how often op was invoked.
func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// Created returns every resource created so far, in creation order.
func (p *Provider) Created() []Resource {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.created)
}

// Deleted returns every resource deleted so far, in deletion order.
func (p *Provider) Deleted() []Resource {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.deleted)
}

// AddTask seeds the task history.
func (p *Provider) AddTask(t provider.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	p.tasks = append(p.tasks, t)
}

// enter counts the call and returns an injected failure, if any. The caller
// must hold p.mu.
func (p *Provider) enter(op string, scopes ...string) error {
	p.calls[op]++
	keys := []string{op}
	for _, s := range scopes {
		if s != "" {
			keys = append(keys, op+":"+s)
		}
	}
	for _, key := range keys {
		queue := p.failures[key]
		if len(queue) == 0 {
			continue
		}
		f := queue[0]
		if !f.always {
			p.failures[key] = queue[1:]
		}
		return fmt.Errorf("injected failure in %s: %w", key, f.err)
	}
	return nil
}

func (p *Provider) recordCreate(kind provider.ResourceKind, id string) {
	p.created = append(p.created, Resource{Kind: kind, ID: id})
}

func (p *Provider) recordDelete(kind provider.ResourceKind, id string) {
	p.deleted = append(p.deleted, Resource{Kind: kind, ID: id})
}

func (p *Provider) addTask(kind, command, resourceID string) string {
	now := p.now()
	t := provider.Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		Command:    command,
		ResourceID: resourceID,
		Status:     provider.TaskSuccess,
		Started:    now,
		Finished:   now,
	}
	p.tasks = append(p.tasks, t)
	return t.ID
}

func (p *Provider) region(id string) (provider.Region, bool) {
	for _, r := range p.regions {
		if r.ID == id {
			return r, true
		}
	}
	return provider.Region{}, false
}

func (p *Provider) nextAddress(prefix string) string {
	p.addr++
	return fmt.Sprintf("%s.%d.%d", prefix, p.addr/250, p.addr%250+1)
}

// paginate slices items according to opts.Marker and the page size.
func paginate[T any](items []T, opts provider.ListOptions, pageSize int) (provider.Page[T], error) {
	start := 0
	if opts.Marker != "" {
		n, err := strconv.Atoi(opts.Marker)
		if err != nil || n < 0 || n > len(items) {
			return provider.Page[T]{}, fmt.Errorf("invalid page marker %q", opts.Marker)
		}
		start = n
	}
	size := pageSize
	if opts.PageSize > 0 {
		size = opts.PageSize
	}
	end := len(items)
	if size > 0 && start+size < end {
		end = start + size
	}
	page := provider.Page[T]{Items: slices.Clone(items[start:end])}
	if end < len(items) {
		page.Next = strconv.Itoa(end)
	}
	return page, nil
}

func matches(opts provider.ListOptions, lbls map[string]string) (bool, error) {
	if opts.LabelSelector == "" {
		return true, nil
	}
	sel, err := labels.Parse(opts.LabelSelector)
	if err != nil {
		return false, fmt.Errorf("invalid label selector: %w", err)
	}
	return labels.Matches(sel, lbls), nil
}

func cloneLabels(l map[string]string) map[string]string {
	if l == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}
