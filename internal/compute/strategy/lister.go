package strategy

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/imamik/nodekit/internal/compute/mapper"
	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/util/async"
	"github.com/imamik/nodekit/internal/util/labels"
	"github.com/imamik/nodekit/pkg/compute"
)

// Catalog lists the raw provider catalog. It satisfies mapper.Catalog.
type Catalog struct {
	client provider.CatalogClient
}

// NewCatalog returns a Catalog over client.
func NewCatalog(client provider.CatalogClient) *Catalog {
	return &Catalog{client: client}
}

func (c *Catalog) Regions(ctx context.Context) ([]provider.Region, error) {
	regions, err := c.client.ListRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	return regions, nil
}

func (c *Catalog) Images(ctx context.Context) ([]provider.Image, error) {
	imgs, err := Drain(ctx, func(ctx context.Context, marker string) (provider.Page[provider.Image], error) {
		return c.client.ListImages(ctx, provider.ListOptions{Marker: marker})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return imgs, nil
}

func (c *Catalog) Flavors(ctx context.Context) ([]provider.Flavor, error) {
	flavors, err := Drain(ctx, func(ctx context.Context, marker string) (provider.Page[provider.Flavor], error) {
		return c.client.ListFlavors(ctx, provider.ListOptions{Marker: marker})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list flavors: %w", err)
	}
	return flavors, nil
}

var _ mapper.Catalog = (*Catalog)(nil)

// Lister aggregates listings across regions and zones.
//
// Lister methods submit work to the pool and must not be called from a
// function already running on the same pool.
type Lister struct {
	client provider.Client
	meta   provider.Metadata
	pool   *async.Pool
	mapper *mapper.Mapper
}

// NewLister returns a Lister. A nil pool is unbounded.
func NewLister(client provider.Client, pool *async.Pool, m *mapper.Mapper) *Lister {
	return &Lister{client: client, meta: client.Metadata(), pool: pool, mapper: m}
}

// Instances lists every instance matching selector, region by region and,
// for zone-scoped providers, zone by zone. An empty selector lists all.
func (l *Lister) Instances(ctx context.Context, selector string) ([]provider.Instance, error) {
	regions, err := l.client.ListRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}

	if !l.meta.ZoneScoped {
		return FanOut(ctx, l.pool, regions, func(ctx context.Context, r provider.Region) ([]provider.Instance, error) {
			return l.drainInstances(ctx, provider.ListOptions{Region: r.ID, LabelSelector: selector})
		})
	}
	return FanOutNested(ctx, l.pool, regions,
		func(_ context.Context, r provider.Region) ([]provider.Zone, error) {
			return r.Zones, nil
		},
		func(ctx context.Context, z provider.Zone) ([]provider.Instance, error) {
			return l.drainInstances(ctx, provider.ListOptions{Region: z.Region, Zone: z.ID, LabelSelector: selector})
		},
	)
}

func (l *Lister) drainInstances(ctx context.Context, opts provider.ListOptions) ([]provider.Instance, error) {
	items, err := Drain(ctx, func(ctx context.Context, marker string) (provider.Page[provider.Instance], error) {
		o := opts
		o.Marker = marker
		return l.client.ListInstances(ctx, o)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list instances in %s: %w", scopeOf(opts), err)
	}
	return items, nil
}

// InstancesBestEffort is Instances without the all-or-nothing join. The
// instances of every region, or zone, that answered are returned together
// with one ScopeError per scope that failed. Failing to list the regions is
// still an error.
func (l *Lister) InstancesBestEffort(ctx context.Context, selector string) ([]provider.Instance, []ScopeError[string], error) {
	regions, err := l.client.ListRegions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list regions: %w", err)
	}
	var scopes []provider.ListOptions
	for _, r := range regions {
		if !l.meta.ZoneScoped {
			scopes = append(scopes, provider.ListOptions{Region: r.ID, LabelSelector: selector})
			continue
		}
		for _, z := range r.Zones {
			scopes = append(scopes, provider.ListOptions{Region: z.Region, Zone: z.ID, LabelSelector: selector})
		}
	}

	insts, failed := FanOutBestEffort(ctx, l.pool, scopes, l.drainInstances)
	out := make([]ScopeError[string], len(failed))
	for i, f := range failed {
		out[i] = ScopeError[string]{Scope: scopeOf(f.Scope), Err: f.Err}
	}
	return insts, out, nil
}

func scopeOf(opts provider.ListOptions) string {
	if opts.Zone != "" {
		return opts.Region + "/" + opts.Zone
	}
	return opts.Region
}

// ListNodes lists every node of the provider.
func (l *Lister) ListNodes(ctx context.Context) ([]*compute.Node, error) {
	return l.nodes(ctx, "")
}

// ListNodesInGroup lists the nodes nodekit created for group.
func (l *Lister) ListNodesInGroup(ctx context.Context, group string) ([]*compute.Node, error) {
	return l.nodes(ctx, labels.ForGroup(group).String())
}

// ListNodesBestEffort lists the nodes of group, or every node when group is
// empty, from the scopes that answer. The scopes that failed are returned
// alongside.
func (l *Lister) ListNodesBestEffort(ctx context.Context, group string) ([]*compute.Node, []ScopeError[string], error) {
	selector := ""
	if group != "" {
		selector = labels.ForGroup(group).String()
	}
	insts, failed, err := l.InstancesBestEffort(ctx, selector)
	if err != nil {
		return nil, nil, err
	}
	return l.toNodes(ctx, insts), failed, nil
}

func (l *Lister) nodes(ctx context.Context, selector string) ([]*compute.Node, error) {
	insts, err := l.Instances(ctx, selector)
	if err != nil {
		return nil, err
	}
	return l.toNodes(ctx, insts), nil
}

func (l *Lister) toNodes(ctx context.Context, insts []provider.Instance) []*compute.Node {
	nodes := make([]*compute.Node, 0, len(insts))
	for _, inst := range insts {
		nodes = append(nodes, l.mapper.Node(ctx, inst))
	}
	return nodes
}

// ListImages returns the image catalog sorted by id.
func (l *Lister) ListImages(ctx context.Context) ([]*compute.Image, error) {
	imgs, err := l.mapper.Images(ctx)
	if err != nil {
		return nil, err
	}
	return sortedByID(imgs), nil
}

// ListHardware returns the hardware catalog sorted by id.
func (l *Lister) ListHardware(ctx context.Context) ([]*compute.Hardware, error) {
	hw, err := l.mapper.HardwareProfiles(ctx)
	if err != nil {
		return nil, err
	}
	return sortedByID(hw), nil
}

// ListLocations returns the location tree, parents before children.
func (l *Lister) ListLocations(ctx context.Context) ([]*compute.Location, error) {
	regions, err := l.client.ListRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	return mapper.Locations(l.meta.Name, regions), nil
}

// ListSecurityGroups lists the security groups of region, or of every region
// when region is empty.
func (l *Lister) ListSecurityGroups(ctx context.Context, region string) ([]*compute.SecurityGroup, error) {
	groups, err := Drain(ctx, func(ctx context.Context, marker string) (provider.Page[provider.SecurityGroup], error) {
		return l.client.ListSecurityGroups(ctx, provider.ListOptions{Region: region, Marker: marker})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list security groups: %w", err)
	}
	locs, err := l.mapper.Locations(ctx)
	if err != nil {
		locs = nil
	}
	out := make([]*compute.SecurityGroup, len(groups))
	for i, g := range groups {
		out[i] = l.mapper.SecurityGroup(g, locs)
	}
	return out, nil
}

// ListTasks returns the task history of a resource, most recent first.
func (l *Lister) ListTasks(ctx context.Context, resourceID string) ([]compute.Task, error) {
	raw, err := Drain(ctx, func(ctx context.Context, marker string) (provider.Page[provider.Task], error) {
		return l.client.ListTasks(ctx, resourceID, provider.ListOptions{Marker: marker})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks of %s: %w", resourceID, err)
	}
	tasks := make([]compute.Task, len(raw))
	for i, t := range raw {
		tasks[i] = mapper.Task(t)
	}
	slices.SortStableFunc(tasks, func(a, b compute.Task) int {
		return b.Info().Started.Compare(a.Info().Started)
	})
	return tasks, nil
}

func sortedByID[T any](m map[string]T) []T {
	keys := slices.Sorted(maps.Keys(m))
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
