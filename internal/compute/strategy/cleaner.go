package strategy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/imamik/nodekit/internal/events"
	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/util/async"
	"github.com/imamik/nodekit/internal/util/labels"
	"github.com/imamik/nodekit/pkg/compute"
)

// Refs are the secondary resources referenced by a set of instances.
type Refs struct {
	SecurityGroups sets.Set[string]
	Subnets        sets.Set[string]
	Networks       sets.Set[string]
}

// RefsOf collects the secondary resources of insts.
func RefsOf(insts ...provider.Instance) Refs {
	refs := Refs{
		SecurityGroups: sets.New[string](),
		Subnets:        sets.New[string](),
		Networks:       sets.New[string](),
	}
	for _, inst := range insts {
		refs.SecurityGroups.Insert(inst.SecurityGroupIDs...)
		for _, nic := range inst.NICs {
			if nic.SubnetID != "" {
				refs.Subnets.Insert(nic.SubnetID)
			}
			if nic.NetworkID != "" {
				refs.Networks.Insert(nic.NetworkID)
			}
		}
	}
	return refs
}

// Cleaner destroys nodes and the owned secondary resources they leave
// without users.
//
// The orphan check and the deletion are not atomic: a node created between
// the two may lose its security group, subnet or network. Deleting a
// resource that is in use fails on most providers, which surfaces as a
// cleanup warning.
type Cleaner struct {
	deps Deps
	log  logr.Logger
}

// NewCleaner returns a Cleaner. Missing collaborators of d are built from
// d.Client.
func NewCleaner(d Deps) *Cleaner {
	d = d.withDefaults()
	return &Cleaner{deps: d, log: d.Log.WithName("cleaner")}
}

// CleanupNode destroys the instance id and then every owned resource it
// referenced that no other live node uses. It reports whether the node and
// its resources are confirmed gone. Only a failure to destroy the instance
// itself is an error; failed secondary cleanups are logged and reported as
// false.
func (c *Cleaner) CleanupNode(ctx context.Context, id string) (bool, error) {
	inst, err := c.deps.Client.GetInstance(ctx, id)
	if err != nil {
		if provider.IsNotFound(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to get instance %s: %w", id, err)
	}
	if inst == nil {
		return true, nil
	}
	if err := c.DestroyInstance(ctx, *inst); err != nil {
		return false, err
	}
	return c.CleanupOrphans(ctx, RefsOf(*inst)), nil
}

// DestroyInstance deletes inst and waits for it to terminate.
func (c *Cleaner) DestroyInstance(ctx context.Context, inst provider.Instance) error {
	group := inst.Labels[labels.KeyGroup]
	if _, err := c.deps.Client.DeleteInstance(ctx, inst.ID); err != nil && !provider.IsNotFound(err) {
		return fmt.Errorf("failed to delete instance %s: %w", inst.ID, err)
	}
	ok, err := c.deps.Poller.WaitForNodeTerminated(ctx, inst.ID)
	if err != nil {
		return fmt.Errorf("failed waiting for instance %s to terminate: %w", inst.ID, err)
	}
	if !ok {
		return &StateError{Op: "wait for node termination", ID: inst.ID, Err: errNotReached}
	}
	c.deps.Observer.Event(events.Event{Type: events.EventNodeDestroyed, Group: group, Kind: "node", Resource: inst.ID, Message: inst.Name})
	return nil
}

// DestroyNodesInGroup destroys every node of group concurrently, then
// cleans up the secondary resources they left orphaned. It returns the
// instances that were destroyed and the errors of those that were not.
func (c *Cleaner) DestroyNodesInGroup(ctx context.Context, group string) ([]provider.Instance, error) {
	insts, err := c.deps.Lister.Instances(ctx, labels.ForGroup(group).String())
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes of group %s: %w", group, err)
	}

	tasks := make([]async.Task, len(insts))
	for i, inst := range insts {
		tasks[i] = async.Task{
			Name: inst.Name,
			Func: func(ctx context.Context) error { return c.DestroyInstance(ctx, inst) },
		}
	}

	var (
		destroyed []provider.Instance
		errs      []error
	)
	for i, r := range async.RunEach(ctx, c.deps.Pool, tasks) {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
			continue
		}
		destroyed = append(destroyed, insts[i])
	}

	if len(destroyed) > 0 {
		c.CleanupOrphans(ctx, RefsOf(destroyed...))
	}
	return destroyed, errors.Join(errs...)
}

// CleanupOrphans removes the owned resources of refs no live node uses, in
// dependency order: security groups, subnets, networks. It reports whether
// nothing is left to clean up.
func (c *Cleaner) CleanupOrphans(ctx context.Context, refs Refs) bool {
	done := true
	for _, id := range sets.List(refs.SecurityGroups) {
		done = c.CleanupSecurityGroupIfOrphaned(ctx, id) && done
	}
	for _, id := range sets.List(refs.Subnets) {
		done = c.CleanupSubnetIfOrphaned(ctx, id) && done
	}
	for _, id := range sets.List(refs.Networks) {
		done = c.CleanupNetworkIfOrphaned(ctx, id) && done
	}
	return done
}

// CleanupSecurityGroupIfOrphaned deletes the security group id when nodekit
// owns it and no live node uses it. It returns false only when a deletion
// was due and did not succeed.
func (c *Cleaner) CleanupSecurityGroupIfOrphaned(ctx context.Context, id string) bool {
	sg, err := c.deps.Client.GetSecurityGroup(ctx, id)
	if err != nil {
		return c.warn(provider.KindSecurityGroup, id, err)
	}
	if sg == nil || !labels.IsOwned(sg.Labels) {
		return true
	}
	return c.deleteIfUnused(ctx, provider.KindSecurityGroup, id, sg.Labels, func(inst provider.Instance) bool {
		return slices.Contains(inst.SecurityGroupIDs, id)
	})
}

// CleanupSubnetIfOrphaned deletes the subnet id when nodekit owns it and no
// live node has an interface in it.
func (c *Cleaner) CleanupSubnetIfOrphaned(ctx context.Context, id string) bool {
	s, err := c.deps.Client.GetSubnet(ctx, id)
	if err != nil {
		return c.warn(provider.KindSubnet, id, err)
	}
	if s == nil || !labels.IsOwned(s.Labels) {
		return true
	}
	return c.deleteIfUnused(ctx, provider.KindSubnet, id, s.Labels, func(inst provider.Instance) bool {
		// NICs do not name their subnet on every provider.
		return slices.ContainsFunc(inst.NICs, func(nic provider.NIC) bool {
			return nic.SubnetID == id || (s.NetworkID != "" && nic.NetworkID == s.NetworkID)
		})
	})
}

// CleanupNetworkIfOrphaned deletes the network id and its owned subnets when
// nodekit owns it and no live node has an interface in it.
func (c *Cleaner) CleanupNetworkIfOrphaned(ctx context.Context, id string) bool {
	n, err := c.deps.Client.GetNetwork(ctx, id)
	if err != nil {
		return c.warn(provider.KindNetwork, id, err)
	}
	if n == nil || !labels.IsOwned(n.Labels) {
		return true
	}

	inNetwork := func(inst provider.Instance) bool {
		return slices.ContainsFunc(inst.NICs, func(nic provider.NIC) bool { return nic.NetworkID == id })
	}
	live, err := c.liveInstances(ctx)
	if err != nil {
		return c.warn(provider.KindNetwork, id, err)
	}
	if slices.ContainsFunc(live, inNetwork) {
		c.log.V(1).Info("Network still in use", "network", id)
		return true
	}

	subnets, err := Drain(ctx, func(ctx context.Context, marker string) (provider.Page[provider.Subnet], error) {
		return c.deps.Client.ListSubnets(ctx, provider.ListOptions{NetworkID: id, Marker: marker})
	})
	if err != nil {
		return c.warn(provider.KindNetwork, id, err)
	}
	for _, s := range subnets {
		if !c.CleanupSubnetIfOrphaned(ctx, s.ID) {
			return false
		}
	}
	return c.deleteIfUnused(ctx, provider.KindNetwork, id, n.Labels, inNetwork)
}

// FindOrphanedSecurityGroups lists the owned security groups of group in
// region that no live node uses. An empty region searches everywhere.
func (c *Cleaner) FindOrphanedSecurityGroups(ctx context.Context, region, group string) ([]*compute.SecurityGroup, error) {
	groups, err := Drain(ctx, func(ctx context.Context, marker string) (provider.Page[provider.SecurityGroup], error) {
		return c.deps.Client.ListSecurityGroups(ctx, provider.ListOptions{
			Region:        region,
			LabelSelector: labels.OwnedInGroup(group).String(),
			Marker:        marker,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list security groups: %w", err)
	}
	live, err := c.liveInstances(ctx)
	if err != nil {
		return nil, err
	}
	used := sets.New[string]()
	for _, inst := range live {
		used.Insert(inst.SecurityGroupIDs...)
	}

	locs, err := c.deps.Mapper.Locations(ctx)
	if err != nil {
		locs = nil
	}
	var orphans []*compute.SecurityGroup
	for _, g := range groups {
		if !used.Has(g.ID) {
			orphans = append(orphans, c.deps.Mapper.SecurityGroup(g, locs))
		}
	}
	return orphans, nil
}

// deleteIfUnused re-reads the live nodes right before deleting.
func (c *Cleaner) deleteIfUnused(ctx context.Context, kind provider.ResourceKind, id string, lbls map[string]string, uses func(provider.Instance) bool) bool {
	live, err := c.liveInstances(ctx)
	if err != nil {
		return c.warn(kind, id, err)
	}
	if slices.ContainsFunc(live, uses) {
		c.log.V(1).Info("Resource still in use", "kind", string(kind), "id", id)
		return true
	}
	if err := remove(ctx, c.deps, lbls[labels.KeyGroup], kind, id); err != nil {
		return c.warn(kind, id, err)
	}
	return true
}

// liveInstances lists every instance that is not terminated.
func (c *Cleaner) liveInstances(ctx context.Context) ([]provider.Instance, error) {
	insts, err := c.deps.Lister.Instances(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to scan live nodes: %w", err)
	}
	meta := c.deps.Client.Metadata()
	return slices.DeleteFunc(insts, func(inst provider.Instance) bool {
		return meta.NodeStatus[inst.Status] == compute.NodeTerminated
	}), nil
}

func (c *Cleaner) warn(kind provider.ResourceKind, id string, err error) bool {
	c.log.Info("Warning: cleanup failed", "kind", string(kind), "id", id, "error", err.Error())
	return false
}
