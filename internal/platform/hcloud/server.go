package hcloud

import (
	"context"
	"fmt"
	"net"
	"slices"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/util/retry"
)

// CreateInstance creates a server and returns its id. It does not wait for
// the create action; callers poll GetInstance.
func (p *Provider) CreateInstance(ctx context.Context, params provider.CreateInstanceParams) (string, error) {
	opts, err := p.buildServerCreateOpts(ctx, params)
	if err != nil {
		return "", err
	}

	result, err := p.createServerWithRetry(ctx, opts)
	if err != nil {
		return "", err
	}

	id := formatID(result.Server.ID)
	p.rememberAction(id, result.Action)
	for _, action := range result.NextActions {
		p.rememberAction(id, action)
	}
	return id, nil
}

// buildServerCreateOpts resolves all references into server creation options.
// Images, server types and locations are sent by id when numeric and by
// name otherwise.
func (p *Provider) buildServerCreateOpts(ctx context.Context, params provider.CreateInstanceParams) (hcloud.ServerCreateOpts, error) {
	opts := hcloud.ServerCreateOpts{
		Name:       params.Name,
		ServerType: &hcloud.ServerType{Name: params.FlavorID},
		Image:      imageRef(params.ImageID),
		Labels:     params.Labels,
		UserData:   params.UserData,
	}
	if n, ok := parseID(params.FlavorID); ok {
		opts.ServerType = &hcloud.ServerType{ID: n}
	}

	switch {
	case params.Zone != "":
		opts.Datacenter = &hcloud.Datacenter{Name: params.Zone}
	case params.Region != "":
		opts.Location = &hcloud.Location{Name: params.Region}
	}

	if params.KeyPairName != "" {
		key, _, err := p.client.SSHKey.GetByName(ctx, params.KeyPairName)
		if err != nil {
			return opts, fmt.Errorf("failed to get ssh key: %w", err)
		}
		if key == nil {
			return opts, provider.NotFound(provider.KindKeyPair, params.KeyPairName)
		}
		opts.SSHKeys = []*hcloud.SSHKey{key}
	}

	networkID := params.NetworkID
	if networkID == "" && params.SubnetID != "" {
		subnetNetwork, _, ok := splitSubnetID(params.SubnetID)
		if !ok {
			return opts, provider.NotFound(provider.KindSubnet, params.SubnetID)
		}
		networkID = formatID(subnetNetwork)
	}
	if networkID != "" {
		n, ok := parseID(networkID)
		if !ok {
			return opts, provider.NotFound(provider.KindNetwork, networkID)
		}
		opts.Networks = []*hcloud.Network{{ID: n}}
	}

	for _, sg := range params.SecurityGroupIDs {
		n, ok := parseID(sg)
		if !ok {
			return opts, provider.NotFound(provider.KindSecurityGroup, sg)
		}
		opts.Firewalls = append(opts.Firewalls, &hcloud.ServerCreateFirewall{Firewall: hcloud.Firewall{ID: n}})
	}
	return opts, nil
}

func imageRef(image string) *hcloud.Image {
	if n, ok := parseID(image); ok {
		return &hcloud.Image{ID: n}
	}
	return &hcloud.Image{Name: image}
}

// createServerWithRetry creates a server with exponential backoff retry logic.
func (p *Provider) createServerWithRetry(ctx context.Context, opts hcloud.ServerCreateOpts) (hcloud.ServerCreateResult, error) {
	var result hcloud.ServerCreateResult

	err := retry.WithExponentialBackoff(ctx, func() error {
		res, _, err := p.client.Server.Create(ctx, opts)
		if err != nil {
			if isInvalidParameter(err) {
				return retry.Fatal(err)
			}
			return err
		}
		result = res
		return nil
	}, retry.WithMaxRetries(p.timeouts.RetryMaxAttempts), retry.WithInitialDelay(p.timeouts.RetryInitialDelay))

	if err != nil {
		return result, fmt.Errorf("failed to create server %s: %w", opts.Name, err)
	}
	p.log.V(1).Info("created server", "name", opts.Name, "id", result.Server.ID)
	return result, nil
}

// GetInstance returns the server with the given id, or nil.
func (p *Provider) GetInstance(ctx context.Context, id string) (*provider.Instance, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	server, _, err := p.client.Server.GetByID(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get server %s: %w", id, err)
	}
	if server == nil {
		return nil, nil
	}
	inst := toInstance(server)
	return &inst, nil
}

// ListInstances returns one page of servers. Hetzner cannot filter servers
// by location, so Region and Zone are applied to the page client-side.
func (p *Provider) ListInstances(ctx context.Context, opts provider.ListOptions) (provider.Page[provider.Instance], error) {
	lo, err := pageOptions(opts)
	if err != nil {
		return provider.Page[provider.Instance]{}, err
	}
	servers, resp, err := p.client.Server.List(ctx, hcloud.ServerListOpts{ListOpts: lo})
	if err != nil {
		return provider.Page[provider.Instance]{}, fmt.Errorf("failed to list servers: %w", err)
	}

	page := provider.Page[provider.Instance]{Next: nextMarker(resp)}
	for _, s := range servers {
		inst := toInstance(s)
		if opts.Region != "" && inst.Region != opts.Region {
			continue
		}
		if opts.Zone != "" && inst.Zone != opts.Zone {
			continue
		}
		page.Items = append(page.Items, inst)
	}
	return page, nil
}

// DeleteInstance deletes the server and returns the delete action id.
func (p *Provider) DeleteInstance(ctx context.Context, id string) (string, error) {
	n, ok := parseID(id)
	if !ok {
		return "", provider.NotFound(provider.KindInstance, id)
	}
	result, _, err := p.client.Server.DeleteWithResult(ctx, &hcloud.Server{ID: n})
	if err != nil {
		return "", wrap(err, "delete", provider.KindInstance, id)
	}
	return p.rememberAction(id, result.Action), nil
}

// StartInstance powers the server on.
func (p *Provider) StartInstance(ctx context.Context, id string) (string, error) {
	return p.power(ctx, id, "start", p.client.Server.Poweron)
}

// StopInstance powers the server off.
func (p *Provider) StopInstance(ctx context.Context, id string) (string, error) {
	return p.power(ctx, id, "stop", p.client.Server.Poweroff)
}

// RebootInstance soft-reboots the server.
func (p *Provider) RebootInstance(ctx context.Context, id string) (string, error) {
	return p.power(ctx, id, "reboot", p.client.Server.Reboot)
}

func (p *Provider) power(ctx context.Context, id, verb string, fn func(context.Context, *hcloud.Server) (*hcloud.Action, *hcloud.Response, error)) (string, error) {
	n, ok := parseID(id)
	if !ok {
		return "", provider.NotFound(provider.KindInstance, id)
	}
	action, _, err := fn(ctx, &hcloud.Server{ID: n})
	if err != nil {
		return "", wrap(err, verb, provider.KindInstance, id)
	}
	return p.rememberAction(id, action), nil
}

func toInstance(s *hcloud.Server) provider.Instance {
	inst := provider.Instance{
		ID:      formatID(s.ID),
		Name:    s.Name,
		Status:  string(s.Status),
		Labels:  s.Labels,
		Created: s.Created,
	}
	if s.Datacenter != nil {
		inst.Zone = s.Datacenter.Name
		if s.Datacenter.Location != nil {
			inst.Region = s.Datacenter.Location.Name
		}
	}
	if s.Image != nil {
		inst.ImageID = formatID(s.Image.ID)
	}
	if s.ServerType != nil {
		inst.FlavorID = s.ServerType.Name
	}

	var public []string
	if ip := s.PublicNet.IPv4.IP; usable(ip) {
		public = append(public, ip.String())
	}
	if ip := s.PublicNet.IPv6.IP; usable(ip) {
		public = append(public, ip.String())
	}
	if len(public) > 0 {
		inst.PublicIPs = public
		inst.NICs = append(inst.NICs, provider.NIC{ID: "eth0", Addresses: slices.Clone(public)})
	}

	for i, pn := range s.PrivateNet {
		if !usable(pn.IP) {
			continue
		}
		nic := provider.NIC{ID: fmt.Sprintf("eth%d", i+1), Addresses: []string{pn.IP.String()}}
		if pn.Network != nil {
			nic.NetworkID = formatID(pn.Network.ID)
		}
		for _, alias := range pn.Aliases {
			nic.Addresses = append(nic.Addresses, alias.String())
		}
		inst.PrivateIPs = append(inst.PrivateIPs, pn.IP.String())
		inst.NICs = append(inst.NICs, nic)
	}

	for _, fw := range s.PublicNet.Firewalls {
		if fw != nil {
			inst.SecurityGroupIDs = append(inst.SecurityGroupIDs, formatID(fw.Firewall.ID))
		}
	}
	return inst
}

func usable(ip net.IP) bool {
	return ip != nil && !ip.IsUnspecified()
}
