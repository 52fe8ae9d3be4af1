package fake

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/util/keygen"
)

// settle moves a pending resource to available once its polls are used up.
func (p *Provider) settle(id string, status *string) {
	if *status != provider.StatusPending {
		return
	}
	if p.pendingPolls[id] > 0 {
		p.pendingPolls[id]--
		return
	}
	*status = provider.StatusAvailable
}

// SetResourceStatus forces the status of a network, subnet or security group.
func (p *Provider) SetResourceStatus(kind provider.ResourceKind, id, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch kind {
	case provider.KindNetwork:
		if n := p.networks.get(id); n != nil {
			n.Status = status
		}
	case provider.KindSubnet:
		if s := p.subnets.get(id); s != nil {
			s.Status = status
		}
	case provider.KindSecurityGroup:
		if g := p.securityGroups.get(id); g != nil {
			g.Status = status
		}
	}
}

func (p *Provider) instancesUsing(match func(provider.Instance) bool) int {
	n := 0
	for _, st := range p.instances {
		if match(st.inst) {
			n++
		}
	}
	return n
}

func (p *Provider) CreateNetwork(_ context.Context, params provider.CreateNetworkParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateNetwork", params.Region); err != nil {
		return "", err
	}
	if _, ok := p.region(params.Region); !ok {
		return "", fmt.Errorf("unknown region %q", params.Region)
	}
	id := "net-" + uuid.NewString()
	p.networks.put(id, &provider.Network{
		ID: id, Name: params.Name, Region: params.Region, CIDR: params.CIDR,
		Status: provider.StatusPending, Labels: cloneLabels(params.Labels),
	})
	p.pendingPolls[id] = p.bootPolls
	p.recordCreate(provider.KindNetwork, id)
	return id, nil
}

func (p *Provider) GetNetwork(_ context.Context, id string) (*provider.Network, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("GetNetwork", id); err != nil {
		return nil, err
	}
	n := p.networks.get(id)
	if n == nil {
		return nil, nil
	}
	p.settle(id, &n.Status)
	cp := *n
	cp.Labels = cloneLabels(n.Labels)
	return &cp, nil
}

func (p *Provider) ListNetworks(_ context.Context, opts provider.ListOptions) (provider.Page[provider.Network], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ListNetworks", opts.Region); err != nil {
		return provider.Page[provider.Network]{}, err
	}
	var items []provider.Network
	for _, n := range p.networks.all() {
		if opts.Region != "" && n.Region != opts.Region {
			continue
		}
		ok, err := matches(opts, n.Labels)
		if err != nil {
			return provider.Page[provider.Network]{}, err
		}
		if ok {
			cp := *n
			cp.Labels = cloneLabels(n.Labels)
			items = append(items, cp)
		}
	}
	return paginate(items, opts, p.pageSize)
}

func (p *Provider) DeleteNetwork(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("DeleteNetwork", id); err != nil {
		return err
	}
	if p.networks.get(id) == nil {
		return provider.NotFound(provider.KindNetwork, id)
	}
	if slices.ContainsFunc(p.subnets.all(), func(s *provider.Subnet) bool { return s.NetworkID == id }) {
		return fmt.Errorf("network %s still has subnets", id)
	}
	if n := p.instancesUsing(func(i provider.Instance) bool {
		return slices.ContainsFunc(i.NICs, func(nic provider.NIC) bool { return nic.NetworkID == id })
	}); n > 0 {
		return fmt.Errorf("network %s is in use by %d instances", id, n)
	}
	p.networks.remove(id)
	p.recordDelete(provider.KindNetwork, id)
	return nil
}

func (p *Provider) CreateSubnet(_ context.Context, params provider.CreateSubnetParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateSubnet", params.Region); err != nil {
		return "", err
	}
	if p.networks.get(params.NetworkID) == nil {
		return "", provider.NotFound(provider.KindNetwork, params.NetworkID)
	}
	id := "subnet-" + uuid.NewString()
	p.subnets.put(id, &provider.Subnet{
		ID: id, NetworkID: params.NetworkID, Name: params.Name, Region: params.Region,
		Zone: params.Zone, CIDR: params.CIDR, Status: provider.StatusPending,
		Labels: cloneLabels(params.Labels),
	})
	p.pendingPolls[id] = p.bootPolls
	p.recordCreate(provider.KindSubnet, id)
	return id, nil
}

func (p *Provider) GetSubnet(_ context.Context, id string) (*provider.Subnet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("GetSubnet", id); err != nil {
		return nil, err
	}
	s := p.subnets.get(id)
	if s == nil {
		return nil, nil
	}
	p.settle(id, &s.Status)
	cp := *s
	cp.Labels = cloneLabels(s.Labels)
	return &cp, nil
}

func (p *Provider) ListSubnets(_ context.Context, opts provider.ListOptions) (provider.Page[provider.Subnet], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ListSubnets", opts.Region); err != nil {
		return provider.Page[provider.Subnet]{}, err
	}
	var items []provider.Subnet
	for _, s := range p.subnets.all() {
		if opts.Region != "" && s.Region != opts.Region {
			continue
		}
		if opts.NetworkID != "" && s.NetworkID != opts.NetworkID {
			continue
		}
		ok, err := matches(opts, s.Labels)
		if err != nil {
			return provider.Page[provider.Subnet]{}, err
		}
		if ok {
			cp := *s
			cp.Labels = cloneLabels(s.Labels)
			items = append(items, cp)
		}
	}
	return paginate(items, opts, p.pageSize)
}

func (p *Provider) DeleteSubnet(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("DeleteSubnet", id); err != nil {
		return err
	}
	if p.subnets.get(id) == nil {
		return provider.NotFound(provider.KindSubnet, id)
	}
	if n := p.instancesUsing(func(i provider.Instance) bool {
		return slices.ContainsFunc(i.NICs, func(nic provider.NIC) bool { return nic.SubnetID == id })
	}); n > 0 {
		return fmt.Errorf("subnet %s is in use by %d instances", id, n)
	}
	p.subnets.remove(id)
	p.recordDelete(provider.KindSubnet, id)
	return nil
}

func (p *Provider) CreateSecurityGroup(_ context.Context, params provider.CreateSecurityGroupParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateSecurityGroup", params.Region); err != nil {
		return "", err
	}
	if params.NetworkID != "" && p.networks.get(params.NetworkID) == nil {
		return "", provider.NotFound(provider.KindNetwork, params.NetworkID)
	}
	id := "sg-" + uuid.NewString()
	p.securityGroups.put(id, &provider.SecurityGroup{
		ID: id, Name: params.Name, Region: params.Region, NetworkID: params.NetworkID,
		Status: provider.StatusPending, Rules: slices.Clone(params.Rules),
		Labels: cloneLabels(params.Labels),
	})
	p.pendingPolls[id] = p.bootPolls
	p.recordCreate(provider.KindSecurityGroup, id)
	return id, nil
}

func (p *Provider) GetSecurityGroup(_ context.Context, id string) (*provider.SecurityGroup, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("GetSecurityGroup", id); err != nil {
		return nil, err
	}
	g := p.securityGroups.get(id)
	if g == nil {
		return nil, nil
	}
	p.settle(id, &g.Status)
	cp := *g
	cp.Rules = slices.Clone(g.Rules)
	cp.Labels = cloneLabels(g.Labels)
	return &cp, nil
}

func (p *Provider) ListSecurityGroups(_ context.Context, opts provider.ListOptions) (provider.Page[provider.SecurityGroup], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ListSecurityGroups", opts.Region); err != nil {
		return provider.Page[provider.SecurityGroup]{}, err
	}
	var items []provider.SecurityGroup
	for _, g := range p.securityGroups.all() {
		if opts.Region != "" && g.Region != opts.Region {
			continue
		}
		if opts.NetworkID != "" && g.NetworkID != opts.NetworkID {
			continue
		}
		ok, err := matches(opts, g.Labels)
		if err != nil {
			return provider.Page[provider.SecurityGroup]{}, err
		}
		if ok {
			cp := *g
			cp.Rules = slices.Clone(g.Rules)
			cp.Labels = cloneLabels(g.Labels)
			items = append(items, cp)
		}
	}
	return paginate(items, opts, p.pageSize)
}

func (p *Provider) DeleteSecurityGroup(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("DeleteSecurityGroup", id); err != nil {
		return err
	}
	if p.securityGroups.get(id) == nil {
		return provider.NotFound(provider.KindSecurityGroup, id)
	}
	if n := p.instancesUsing(func(i provider.Instance) bool {
		return slices.Contains(i.SecurityGroupIDs, id)
	}); n > 0 {
		return fmt.Errorf("security group %s is in use by %d instances", id, n)
	}
	p.securityGroups.remove(id)
	p.recordDelete(provider.KindSecurityGroup, id)
	return nil
}

func (p *Provider) ImportKeyPair(_ context.Context, params provider.ImportKeyPairParams) (*provider.KeyPair, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ImportKeyPair", params.Name); err != nil {
		return nil, err
	}
	if p.keyPairs.get(params.Name) != nil {
		return nil, fmt.Errorf("key pair %q already exists", params.Name)
	}
	fp, err := keygen.Fingerprint(params.PublicKey)
	if err != nil {
		return nil, err
	}
	kp := &provider.KeyPair{
		ID: "kp-" + uuid.NewString(), Name: params.Name, Fingerprint: fp,
		PublicKey: params.PublicKey, Labels: cloneLabels(params.Labels),
	}
	p.keyPairs.put(params.Name, kp)
	p.recordCreate(provider.KindKeyPair, params.Name)
	cp := *kp
	return &cp, nil
}

func (p *Provider) GetKeyPair(_ context.Context, name string) (*provider.KeyPair, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("GetKeyPair", name); err != nil {
		return nil, err
	}
	kp := p.keyPairs.get(name)
	if kp == nil {
		return nil, nil
	}
	cp := *kp
	cp.Labels = cloneLabels(kp.Labels)
	return &cp, nil
}

func (p *Provider) ListKeyPairs(_ context.Context, opts provider.ListOptions) (provider.Page[provider.KeyPair], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ListKeyPairs"); err != nil {
		return provider.Page[provider.KeyPair]{}, err
	}
	var items []provider.KeyPair
	for _, kp := range p.keyPairs.all() {
		ok, err := matches(opts, kp.Labels)
		if err != nil {
			return provider.Page[provider.KeyPair]{}, err
		}
		if ok {
			cp := *kp
			cp.Labels = cloneLabels(kp.Labels)
			items = append(items, cp)
		}
	}
	return paginate(items, opts, p.pageSize)
}

func (p *Provider) DeleteKeyPair(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("DeleteKeyPair", name); err != nil {
		return err
	}
	if !p.keyPairs.remove(name) {
		return provider.NotFound(provider.KindKeyPair, name)
	}
	p.recordDelete(provider.KindKeyPair, name)
	return nil
}

func (p *Provider) GetTask(_ context.Context, id string) (*provider.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("GetTask", id); err != nil {
		return nil, err
	}
	for _, t := range p.tasks {
		if t.ID == id {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (p *Provider) ListTasks(_ context.Context, resourceID string, opts provider.ListOptions) (provider.Page[provider.Task], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ListTasks", resourceID); err != nil {
		return provider.Page[provider.Task]{}, err
	}
	var items []provider.Task
	for _, t := range p.tasks {
		if resourceID == "" || t.ResourceID == resourceID {
			items = append(items, t)
		}
	}
	return paginate(items, opts, p.pageSize)
}
