package strategy

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/util/labels"
)

// Orphan is an owned resource that no live node needs anymore.
type Orphan struct {
	Kind provider.ResourceKind `json:"kind"`
	ID   string                `json:"id"`
	Name string                `json:"name"`
}

// SweepGroup finds what nodekit created for group and left behind: security
// groups, subnets and networks without live users, and one-time key pairs a
// batch failed to release. Unless dryRun is set they are deleted, in
// dependency order. It returns the orphans found and whether every due
// deletion succeeded.
func (c *Cleaner) SweepGroup(ctx context.Context, group string, dryRun bool) ([]Orphan, bool, error) {
	selector := labels.OwnedInGroup(group).String()
	opts := func(marker string) provider.ListOptions {
		return provider.ListOptions{LabelSelector: selector, Marker: marker}
	}

	sgs, err := Drain(ctx, func(ctx context.Context, marker string) (provider.Page[provider.SecurityGroup], error) {
		return c.deps.Client.ListSecurityGroups(ctx, opts(marker))
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to list security groups: %w", err)
	}
	subnets, err := Drain(ctx, func(ctx context.Context, marker string) (provider.Page[provider.Subnet], error) {
		return c.deps.Client.ListSubnets(ctx, opts(marker))
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to list subnets: %w", err)
	}
	networks, err := Drain(ctx, func(ctx context.Context, marker string) (provider.Page[provider.Network], error) {
		return c.deps.Client.ListNetworks(ctx, opts(marker))
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to list networks: %w", err)
	}
	keyPairs, err := Drain(ctx, func(ctx context.Context, marker string) (provider.Page[provider.KeyPair], error) {
		return c.deps.Client.ListKeyPairs(ctx, opts(marker))
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to list key pairs: %w", err)
	}

	live, err := c.liveInstances(ctx)
	if err != nil {
		return nil, false, err
	}
	used := RefsOf(live...)

	var orphans []Orphan
	due := Refs{SecurityGroups: sets.New[string](), Subnets: sets.New[string](), Networks: sets.New[string]()}
	for _, sg := range sgs {
		if !used.SecurityGroups.Has(sg.ID) {
			orphans = append(orphans, Orphan{Kind: provider.KindSecurityGroup, ID: sg.ID, Name: sg.Name})
			due.SecurityGroups.Insert(sg.ID)
		}
	}
	for _, s := range subnets {
		// NICs do not name their subnet on every provider.
		if !used.Subnets.Has(s.ID) && !used.Networks.Has(s.NetworkID) {
			orphans = append(orphans, Orphan{Kind: provider.KindSubnet, ID: s.ID, Name: s.Name})
			due.Subnets.Insert(s.ID)
		}
	}
	for _, n := range networks {
		if !used.Networks.Has(n.ID) {
			orphans = append(orphans, Orphan{Kind: provider.KindNetwork, ID: n.ID, Name: n.Name})
			due.Networks.Insert(n.ID)
		}
	}
	var oneTime []provider.KeyPair
	for _, kp := range keyPairs {
		if labels.IsOneTime(kp.Labels) {
			orphans = append(orphans, Orphan{Kind: provider.KindKeyPair, ID: kp.Name, Name: kp.Name})
			oneTime = append(oneTime, kp)
		}
	}
	slices.SortStableFunc(orphans, func(a, b Orphan) int {
		if a.Kind != b.Kind {
			return strings.Compare(string(a.Kind), string(b.Kind))
		}
		return strings.Compare(a.ID, b.ID)
	})

	if dryRun || len(orphans) == 0 {
		return orphans, true, nil
	}

	c.log.Info("Sweeping orphaned resources", "group", group, "count", len(orphans))
	done := true
	for _, kp := range oneTime {
		if err := remove(ctx, c.deps, group, provider.KindKeyPair, kp.Name); err != nil {
			done = c.warn(provider.KindKeyPair, kp.Name, err)
		}
	}
	return orphans, c.CleanupOrphans(ctx, due) && done, nil
}
