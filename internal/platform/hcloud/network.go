package hcloud

import (
	"context"
	"fmt"
	"maps"
	"net"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodekit/internal/provider"
)

// Hetzner networks and firewalls are global. These labels carry the
// portable scope of the ones nodekit creates.
const (
	labelRegion  = "nodekit.io/region"
	labelNetwork = "nodekit.io/network"
)

// CreateNetwork creates a network without subnets.
func (p *Provider) CreateNetwork(ctx context.Context, params provider.CreateNetworkParams) (string, error) {
	_, ipRange, err := net.ParseCIDR(params.CIDR)
	if err != nil {
		return "", fmt.Errorf("invalid network ip range %q: %w", params.CIDR, err)
	}
	network, _, err := p.client.Network.Create(ctx, hcloud.NetworkCreateOpts{
		Name:    params.Name,
		IPRange: ipRange,
		Labels:  scoped(params.Labels, labelRegion, params.Region),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create network %s: %w", params.Name, err)
	}
	return formatID(network.ID), nil
}

// GetNetwork returns the network, or nil.
func (p *Provider) GetNetwork(ctx context.Context, id string) (*provider.Network, error) {
	network, err := p.network(ctx, id)
	if err != nil || network == nil {
		return nil, err
	}
	n := toNetwork(network)
	return &n, nil
}

func (p *Provider) network(ctx context.Context, id string) (*hcloud.Network, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	network, _, err := p.client.Network.GetByID(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get network %s: %w", id, err)
	}
	return network, nil
}

// ListNetworks returns one page of networks. Networks without a region
// label are global and match every region.
func (p *Provider) ListNetworks(ctx context.Context, opts provider.ListOptions) (provider.Page[provider.Network], error) {
	networks, next, err := p.listNetworks(ctx, opts)
	if err != nil {
		return provider.Page[provider.Network]{}, err
	}
	page := provider.Page[provider.Network]{Next: next}
	for _, network := range networks {
		if inRegion(network.Labels, opts.Region) {
			page.Items = append(page.Items, toNetwork(network))
		}
	}
	return page, nil
}

func (p *Provider) listNetworks(ctx context.Context, opts provider.ListOptions) ([]*hcloud.Network, string, error) {
	lo, err := pageOptions(opts)
	if err != nil {
		return nil, "", err
	}
	networks, resp, err := p.client.Network.List(ctx, hcloud.NetworkListOpts{ListOpts: lo})
	if err != nil {
		return nil, "", fmt.Errorf("failed to list networks: %w", err)
	}
	return networks, nextMarker(resp), nil
}

// DeleteNetwork deletes the network.
func (p *Provider) DeleteNetwork(ctx context.Context, id string) error {
	return (&DeleteOperation[*hcloud.Network]{
		ID:   id,
		Kind: provider.KindNetwork,
		Get: func(ctx context.Context) (*hcloud.Network, *hcloud.Response, error) {
			network, err := p.network(ctx, id)
			return network, nil, err
		},
		Delete: p.client.Network.Delete,
	}).Execute(ctx, p)
}

// CreateSubnet adds a cloud subnet to a network. The subnet's network zone
// is the one of the requested region.
func (p *Provider) CreateSubnet(ctx context.Context, params provider.CreateSubnetParams) (string, error) {
	network, err := p.network(ctx, params.NetworkID)
	if err != nil {
		return "", err
	}
	if network == nil {
		return "", provider.NotFound(provider.KindNetwork, params.NetworkID)
	}
	_, ipRange, err := net.ParseCIDR(params.CIDR)
	if err != nil {
		return "", fmt.Errorf("invalid subnet ip range %q: %w", params.CIDR, err)
	}
	zone, err := p.networkZone(ctx, params.Region)
	if err != nil {
		return "", err
	}

	action, _, err := p.client.Network.AddSubnet(ctx, network, hcloud.NetworkAddSubnetOpts{
		Subnet: hcloud.NetworkSubnet{
			Type:        hcloud.NetworkSubnetTypeCloud,
			IPRange:     ipRange,
			NetworkZone: zone,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to add subnet %s to network %s: %w", params.CIDR, params.NetworkID, err)
	}
	id := subnetID(network.ID, ipRange)
	p.rememberAction(id, action)
	return id, nil
}

func (p *Provider) networkZone(ctx context.Context, region string) (hcloud.NetworkZone, error) {
	if region == "" {
		return hcloud.NetworkZoneEUCentral, nil
	}
	loc, _, err := p.client.Location.GetByName(ctx, region)
	if err != nil {
		return "", fmt.Errorf("failed to get location %s: %w", region, err)
	}
	if loc == nil {
		return "", fmt.Errorf("unknown location %s", region)
	}
	return loc.NetworkZone, nil
}

// GetSubnet returns the subnet, or nil.
func (p *Provider) GetSubnet(ctx context.Context, id string) (*provider.Subnet, error) {
	networkID, cidr, ok := splitSubnetID(id)
	if !ok {
		return nil, nil
	}
	network, err := p.network(ctx, formatID(networkID))
	if err != nil || network == nil {
		return nil, err
	}
	for _, s := range network.Subnets {
		if s.IPRange != nil && s.IPRange.String() == cidr {
			subnet := toSubnet(network, s)
			return &subnet, nil
		}
	}
	return nil, nil
}

// ListSubnets lists the subnets of one network, or of one page of networks
// when no network is given.
func (p *Provider) ListSubnets(ctx context.Context, opts provider.ListOptions) (provider.Page[provider.Subnet], error) {
	var (
		networks []*hcloud.Network
		next     string
	)
	if opts.NetworkID != "" {
		network, err := p.network(ctx, opts.NetworkID)
		if err != nil {
			return provider.Page[provider.Subnet]{}, err
		}
		if network == nil {
			return provider.Page[provider.Subnet]{}, provider.NotFound(provider.KindNetwork, opts.NetworkID)
		}
		networks = []*hcloud.Network{network}
	} else {
		var err error
		networks, next, err = p.listNetworks(ctx, opts)
		if err != nil {
			return provider.Page[provider.Subnet]{}, err
		}
	}

	page := provider.Page[provider.Subnet]{Next: next}
	for _, network := range networks {
		if !inRegion(network.Labels, opts.Region) {
			continue
		}
		for _, s := range network.Subnets {
			page.Items = append(page.Items, toSubnet(network, s))
		}
	}
	return page, nil
}

// DeleteSubnet removes the subnet from its network.
func (p *Provider) DeleteSubnet(ctx context.Context, id string) error {
	subnet, err := p.GetSubnet(ctx, id)
	if err != nil {
		return err
	}
	if subnet == nil {
		return provider.NotFound(provider.KindSubnet, id)
	}
	networkID, cidr, _ := splitSubnetID(id)
	_, ipRange, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid subnet id %q: %w", id, err)
	}
	action, _, err := p.client.Network.DeleteSubnet(ctx, &hcloud.Network{ID: networkID}, hcloud.NetworkDeleteSubnetOpts{
		Subnet: hcloud.NetworkSubnet{IPRange: ipRange},
	})
	if err != nil {
		return wrap(err, "delete", provider.KindSubnet, id)
	}
	p.rememberAction(id, action)
	return nil
}

// subnetID builds "<network id>/<cidr>".
func subnetID(networkID int64, ipRange *net.IPNet) string {
	return formatID(networkID) + "/" + ipRange.String()
}

func splitSubnetID(id string) (int64, string, bool) {
	network, cidr, found := strings.Cut(id, "/")
	if !found {
		return 0, "", false
	}
	n, ok := parseID(network)
	if !ok {
		return 0, "", false
	}
	return n, cidr, true
}

func toNetwork(n *hcloud.Network) provider.Network {
	out := provider.Network{
		ID:     formatID(n.ID),
		Name:   n.Name,
		Region: n.Labels[labelRegion],
		Status: provider.StatusAvailable,
		Labels: unscoped(n.Labels),
	}
	if n.IPRange != nil {
		out.CIDR = n.IPRange.String()
	}
	return out
}

func toSubnet(n *hcloud.Network, s hcloud.NetworkSubnet) provider.Subnet {
	out := provider.Subnet{
		NetworkID: formatID(n.ID),
		Name:      n.Name,
		Region:    n.Labels[labelRegion],
		Zone:      string(s.NetworkZone),
		Status:    provider.StatusAvailable,
		Labels:    unscoped(n.Labels),
	}
	if s.IPRange != nil {
		out.ID = subnetID(n.ID, s.IPRange)
		out.CIDR = s.IPRange.String()
		out.Name = n.Name + "-" + strings.NewReplacer(".", "-", "/", "-").Replace(out.CIDR)
	}
	return out
}

// scoped returns a copy of labels with key set to value when value is set.
func scoped(labels map[string]string, key, value string) map[string]string {
	out := maps.Clone(labels)
	if value == "" {
		return out
	}
	if out == nil {
		out = map[string]string{}
	}
	out[key] = value
	return out
}

// unscoped strips the scope labels.
func unscoped(labels map[string]string) map[string]string {
	out := maps.Clone(labels)
	delete(out, labelRegion)
	delete(out, labelNetwork)
	return out
}

func inRegion(labels map[string]string, region string) bool {
	scope := labels[labelRegion]
	return region == "" || scope == "" || scope == region
}
