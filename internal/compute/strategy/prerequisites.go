package strategy

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/imamik/nodekit/internal/events"
	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/util/keygen"
	"github.com/imamik/nodekit/internal/util/labels"
	"github.com/imamik/nodekit/internal/util/naming"
	"github.com/imamik/nodekit/pkg/compute"
)

// Default address ranges of auto-created networks.
const (
	DefaultNetworkCIDR = "10.0.0.0/16"
	DefaultSubnetCIDR  = "10.0.1.0/24"
)

// DefaultInboundPorts are opened by auto-created security groups.
var DefaultInboundPorts = []int{22}

// Prerequisites holds the shared resources every node of a batch is
// created with.
type Prerequisites struct {
	Region           string
	Zone             string
	NetworkID        string
	SubnetID         string
	SecurityGroupIDs []string
	KeyPairName      string
	// PrivateKey is the login key of the nodes, generated or supplied.
	PrivateKey string

	networkOwned bool
}

// batch is the state of one CreateNodesInGroup call.
type batch struct {
	deps    Deps
	group   string
	attempt string
	tmpl    compute.Template
	ledger  *Ledger
	pre     Prerequisites
}

func (b *batch) opts() compute.TemplateOptions {
	return b.tmpl.Options
}

// resolve runs the resolution phases strictly in order. A failing phase
// leaves what earlier phases created in the ledger.
func (b *batch) resolve(ctx context.Context) error {
	phases := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"location", b.resolveLocation},
		{"network", b.resolveNetwork},
		{"subnet", b.resolveSubnet},
		{"security groups", b.resolveSecurityGroups},
		{"key pair", b.resolveKeyPair},
	}
	for _, phase := range phases {
		if err := phase.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", phase.name, err)
		}
	}
	return nil
}

func (b *batch) resolveLocation(ctx context.Context) error {
	id := b.tmpl.LocationID
	if id == "" {
		return fmt.Errorf("no location given")
	}
	regions, err := b.deps.Client.ListRegions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list regions: %w", err)
	}
	for _, r := range regions {
		if r.ID == id {
			b.pre.Region = r.ID
			return nil
		}
		for _, z := range r.Zones {
			if z.ID == id {
				b.pre.Region, b.pre.Zone = r.ID, z.ID
				return nil
			}
		}
	}
	return fmt.Errorf("unknown location %q", id)
}

func (b *batch) resolveNetwork(ctx context.Context) error {
	opts := b.opts()
	switch {
	case opts.NetworkID != "":
		n, err := b.deps.Client.GetNetwork(ctx, opts.NetworkID)
		if err != nil {
			return fmt.Errorf("failed to get network %s: %w", opts.NetworkID, err)
		}
		if n == nil {
			return provider.NotFound(provider.KindNetwork, opts.NetworkID)
		}
		b.pre.NetworkID = n.ID
		return nil
	case opts.SubnetID != "", !opts.AutoCreateNetwork:
		return nil
	}

	existing, err := Drain(ctx, func(ctx context.Context, marker string) (provider.Page[provider.Network], error) {
		return b.deps.Client.ListNetworks(ctx, b.ownedListOptions(marker))
	})
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", err)
	}
	if i := slices.IndexFunc(existing, func(n provider.Network) bool { return n.Status != provider.StatusFailed }); i >= 0 {
		b.pre.NetworkID, b.pre.networkOwned = existing[i].ID, true
		b.reused(provider.KindNetwork, existing[i].ID)
		return b.waitAvailable(ctx, provider.KindNetwork, existing[i].ID)
	}

	id, err := b.deps.Client.CreateNetwork(ctx, provider.CreateNetworkParams{
		Name:   naming.Network(b.group),
		Region: b.pre.Region,
		CIDR:   orDefault(opts.NetworkCIDR, DefaultNetworkCIDR),
		Labels: b.ownedLabels(),
	})
	if err != nil {
		return fmt.Errorf("failed to create network: %w", err)
	}
	b.created(provider.KindNetwork, id, false)
	b.pre.NetworkID, b.pre.networkOwned = id, true
	return b.waitAvailable(ctx, provider.KindNetwork, id)
}

func (b *batch) resolveSubnet(ctx context.Context) error {
	opts := b.opts()
	if opts.SubnetID != "" {
		s, err := b.deps.Client.GetSubnet(ctx, opts.SubnetID)
		if err != nil {
			return fmt.Errorf("failed to get subnet %s: %w", opts.SubnetID, err)
		}
		if s == nil {
			return provider.NotFound(provider.KindSubnet, opts.SubnetID)
		}
		switch b.pre.NetworkID {
		case "":
			b.pre.NetworkID = s.NetworkID
		case s.NetworkID:
		default:
			return &StateError{
				Op:  "resolve subnet",
				ID:  s.ID,
				Err: fmt.Errorf("subnet belongs to network %s, not %s", s.NetworkID, b.pre.NetworkID),
			}
		}
		b.pre.SubnetID = s.ID
		return nil
	}
	if !b.pre.networkOwned {
		return nil
	}

	existing, err := Drain(ctx, func(ctx context.Context, marker string) (provider.Page[provider.Subnet], error) {
		o := b.ownedListOptions(marker)
		o.NetworkID = b.pre.NetworkID
		return b.deps.Client.ListSubnets(ctx, o)
	})
	if err != nil {
		return fmt.Errorf("failed to list subnets: %w", err)
	}
	if i := slices.IndexFunc(existing, func(s provider.Subnet) bool { return s.Status != provider.StatusFailed }); i >= 0 {
		b.pre.SubnetID = existing[i].ID
		b.reused(provider.KindSubnet, existing[i].ID)
		return b.waitAvailable(ctx, provider.KindSubnet, existing[i].ID)
	}

	id, err := b.deps.Client.CreateSubnet(ctx, provider.CreateSubnetParams{
		NetworkID: b.pre.NetworkID,
		Name:      naming.Subnet(b.group),
		Region:    b.pre.Region,
		Zone:      b.pre.Zone,
		CIDR:      orDefault(opts.SubnetCIDR, DefaultSubnetCIDR),
		Labels:    b.ownedLabels(),
	})
	if err != nil {
		return fmt.Errorf("failed to create subnet: %w", err)
	}
	b.created(provider.KindSubnet, id, false)
	b.pre.SubnetID = id
	return b.waitAvailable(ctx, provider.KindSubnet, id)
}

func (b *batch) resolveSecurityGroups(ctx context.Context) error {
	opts := b.opts()
	switch {
	case len(opts.SecurityGroupIDs) > 0 && b.pre.NetworkID == "":
		return b.networkFromSecurityGroups(ctx, opts.SecurityGroupIDs)
	case len(opts.SecurityGroupIDs) > 0:
		for _, id := range opts.SecurityGroupIDs {
			sg, err := b.deps.Client.GetSecurityGroup(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get security group %s: %w", id, err)
			}
			if sg == nil {
				return provider.NotFound(provider.KindSecurityGroup, id)
			}
			if sg.NetworkID != "" && sg.NetworkID != b.pre.NetworkID {
				return &StateError{
					Op:  "resolve security group",
					ID:  id,
					Err: fmt.Errorf("security group belongs to network %s, not %s", sg.NetworkID, b.pre.NetworkID),
				}
			}
		}
		b.pre.SecurityGroupIDs = slices.Clone(opts.SecurityGroupIDs)
		return nil
	case !opts.AutoCreateSecurityGroup:
		return nil
	}

	existing, err := Drain(ctx, func(ctx context.Context, marker string) (provider.Page[provider.SecurityGroup], error) {
		return b.deps.Client.ListSecurityGroups(ctx, b.ownedListOptions(marker))
	})
	if err != nil {
		return fmt.Errorf("failed to list security groups: %w", err)
	}
	if i := slices.IndexFunc(existing, func(g provider.SecurityGroup) bool {
		return g.Status != provider.StatusFailed && g.NetworkID == b.pre.NetworkID
	}); i >= 0 {
		b.pre.SecurityGroupIDs = []string{existing[i].ID}
		b.reused(provider.KindSecurityGroup, existing[i].ID)
		return b.waitAvailable(ctx, provider.KindSecurityGroup, existing[i].ID)
	}

	id, err := b.deps.Client.CreateSecurityGroup(ctx, provider.CreateSecurityGroupParams{
		Name:      naming.SecurityGroup(b.group),
		Region:    b.pre.Region,
		NetworkID: b.pre.NetworkID,
		Rules:     inboundRules(opts.InboundPorts),
		Labels:    b.ownedLabels(),
	})
	if err != nil {
		return fmt.Errorf("failed to create security group: %w", err)
	}
	b.created(provider.KindSecurityGroup, id, false)
	b.pre.SecurityGroupIDs = []string{id}
	return b.waitAvailable(ctx, provider.KindSecurityGroup, id)
}

// networkFromSecurityGroups resolves groups named without a network. The
// groups are looked up in the region and must agree on one network, or
// carry none at all on providers whose groups are not network scoped.
func (b *batch) networkFromSecurityGroups(ctx context.Context, ids []string) error {
	groups, err := Drain(ctx, func(ctx context.Context, marker string) (provider.Page[provider.SecurityGroup], error) {
		return b.deps.Client.ListSecurityGroups(ctx, provider.ListOptions{Region: b.pre.Region, Marker: marker})
	})
	if err != nil {
		return fmt.Errorf("failed to list security groups: %w", err)
	}

	wanted := sets.New(ids...)
	var found []provider.SecurityGroup
	for _, g := range groups {
		if wanted.Has(g.ID) {
			found = append(found, g)
		}
	}
	if len(found) == 0 {
		return &StateError{
			Op:  "resolve security groups",
			Err: fmt.Errorf("%w for security groups %s", ErrCannotDetermineNetwork, strings.Join(ids, ", ")),
		}
	}
	if len(found) < wanted.Len() {
		have := sets.New[string]()
		for _, g := range found {
			have.Insert(g.ID)
		}
		missing := sets.List(wanted.Difference(have))
		return fmt.Errorf("security groups %s not found in region %s: %w", strings.Join(missing, ", "), b.pre.Region, provider.ErrNotFound)
	}

	networks := sets.New[string]()
	for _, g := range found {
		if g.NetworkID != "" {
			networks.Insert(g.NetworkID)
		}
	}
	if networks.Len() > 1 {
		return &StateError{
			Op:  "resolve security groups",
			Err: fmt.Errorf("security groups %s span networks %s", strings.Join(ids, ", "), strings.Join(sets.List(networks), ", ")),
		}
	}
	if networks.Len() == 1 {
		b.pre.NetworkID = sets.List(networks)[0]
	}
	b.pre.SecurityGroupIDs = slices.Clone(ids)
	return nil
}

func (b *batch) resolveKeyPair(ctx context.Context) error {
	opts := b.opts()
	switch {
	case opts.KeyPairName != "":
		kp, err := b.deps.Client.GetKeyPair(ctx, opts.KeyPairName)
		if err != nil {
			return fmt.Errorf("failed to get key pair %s: %w", opts.KeyPairName, err)
		}
		if kp == nil {
			return provider.NotFound(provider.KindKeyPair, opts.KeyPairName)
		}
		b.pre.KeyPairName = kp.Name
		b.pre.PrivateKey = opts.PrivateKey
		return nil
	case opts.PublicKey != "":
		b.pre.PrivateKey = opts.PrivateKey
		return b.importKeyPair(ctx, opts.PublicKey)
	case opts.AutoCreateKeyPair:
		kp, err := keygen.GenerateRSAKeyPair(keygen.DefaultBits)
		if err != nil {
			return err
		}
		b.pre.PrivateKey = string(kp.PrivateKey)
		return b.importKeyPair(ctx, string(kp.PublicKey))
	default:
		b.pre.PrivateKey = opts.PrivateKey
		return nil
	}
}

func (b *batch) importKeyPair(ctx context.Context, publicKey string) error {
	kp, err := b.deps.Client.ImportKeyPair(ctx, provider.ImportKeyPairParams{
		Name:      naming.KeyPair(b.group),
		PublicKey: strings.TrimSpace(publicKey),
		Labels:    labels.NewLabelBuilder(b.group).WithOneTime().WithAttempt(b.attempt).Build(),
	})
	if err != nil {
		return fmt.Errorf("failed to import key pair: %w", err)
	}
	b.created(provider.KindKeyPair, kp.Name, true)
	b.pre.KeyPairName = kp.Name
	return nil
}

func (b *batch) waitAvailable(ctx context.Context, kind provider.ResourceKind, id string) error {
	ok, err := b.deps.Poller.WaitForResource(ctx, kind, id)
	if err != nil {
		return err
	}
	if !ok {
		return &StateError{Op: "wait for " + string(kind), ID: id, Err: errNotReached}
	}
	return nil
}

func (b *batch) ownedLabels() map[string]string {
	return labels.NewLabelBuilder(b.group).WithOwned().WithAttempt(b.attempt).Build()
}

func (b *batch) ownedListOptions(marker string) provider.ListOptions {
	return provider.ListOptions{
		Region:        b.pre.Region,
		LabelSelector: labels.OwnedInGroup(b.group).String(),
		Marker:        marker,
	}
}

func (b *batch) created(kind provider.ResourceKind, id string, oneTime bool) {
	b.ledger.Record(PendingResource{Kind: kind, ID: id, OneTime: oneTime})
	b.deps.Observer.Event(events.Event{Type: events.EventResourceCreated, Group: b.group, Kind: string(kind), Resource: id})
}

func (b *batch) reused(kind provider.ResourceKind, id string) {
	b.deps.Observer.Event(events.Event{Type: events.EventResourceReused, Group: b.group, Kind: string(kind), Resource: id})
}

func inboundRules(ports []int) []provider.Rule {
	if len(ports) == 0 {
		ports = DefaultInboundPorts
	}
	rules := make([]provider.Rule, 0, len(ports))
	for _, port := range slices.Compact(slices.Sorted(slices.Values(ports))) {
		rules = append(rules, provider.Rule{Protocol: "tcp", FromPort: port, ToPort: port, CIDRs: []string{"0.0.0.0/0", "::/0"}})
	}
	return rules
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
