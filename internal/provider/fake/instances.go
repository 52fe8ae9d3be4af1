package fake

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/imamik/nodekit/internal/provider"
)

func (p *Provider) CreateInstance(_ context.Context, params provider.CreateInstanceParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateInstance", params.Region, params.Name); err != nil {
		return "", err
	}

	region, ok := p.region(params.Region)
	if !ok {
		return "", fmt.Errorf("unknown region %q", params.Region)
	}
	if !slices.ContainsFunc(p.images, func(i provider.Image) bool { return i.ID == params.ImageID }) {
		return "", fmt.Errorf("unknown image %q", params.ImageID)
	}
	if !slices.ContainsFunc(p.flavors, func(f provider.Flavor) bool { return f.ID == params.FlavorID }) {
		return "", fmt.Errorf("unknown flavor %q", params.FlavorID)
	}
	if params.KeyPairName != "" && p.keyPairs.get(params.KeyPairName) == nil {
		return "", provider.NotFound(provider.KindKeyPair, params.KeyPairName)
	}
	if params.NetworkID != "" && p.networks.get(params.NetworkID) == nil {
		return "", provider.NotFound(provider.KindNetwork, params.NetworkID)
	}
	if params.SubnetID != "" && p.subnets.get(params.SubnetID) == nil {
		return "", provider.NotFound(provider.KindSubnet, params.SubnetID)
	}
	for _, sg := range params.SecurityGroupIDs {
		if p.securityGroups.get(sg) == nil {
			return "", provider.NotFound(provider.KindSecurityGroup, sg)
		}
	}

	zone := params.Zone
	if zone == "" && len(region.Zones) > 0 {
		zone = region.Zones[0].ID
	}

	id := uuid.NewString()
	public := p.nextAddress("203.0")
	inst := provider.Instance{
		ID:               id,
		Name:             params.Name,
		Region:           params.Region,
		Zone:             zone,
		ImageID:          params.ImageID,
		FlavorID:         params.FlavorID,
		Status:           StatusProvisioning,
		PublicIPs:        []string{public},
		NICs:             []provider.NIC{{ID: id + "-eth0", Addresses: []string{public}}},
		SecurityGroupIDs: slices.Clone(params.SecurityGroupIDs),
		KeyPairName:      params.KeyPairName,
		Labels:           cloneLabels(params.Labels),
		Created:          p.now(),
	}
	if params.NetworkID != "" {
		private := p.nextAddress("10.0")
		inst.PrivateIPs = []string{private}
		inst.NICs = append(inst.NICs, provider.NIC{
			ID:        id + "-eth1",
			NetworkID: params.NetworkID,
			SubnetID:  params.SubnetID,
			Addresses: []string{private},
		})
	}

	final := StatusRunning
	if p.bootStatus != nil {
		final = p.bootStatus(params)
	}
	p.instances[id] = &instanceState{inst: inst, bootPolls: p.bootPolls, final: final}
	p.instanceIDs = append(p.instanceIDs, id)
	p.recordCreate(provider.KindInstance, id)
	p.addTask(provider.TaskKindDeploy, "create_instance", id)
	return id, nil
}

func (p *Provider) GetInstance(_ context.Context, id string) (*provider.Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("GetInstance", id); err != nil {
		return nil, err
	}
	st, ok := p.instances[id]
	if !ok {
		return nil, nil
	}
	if st.inst.Status == StatusProvisioning {
		if st.bootPolls <= 0 {
			st.inst.Status = st.final
		} else {
			st.bootPolls--
		}
	}
	inst := snapshot(st.inst)
	return &inst, nil
}

func (p *Provider) ListInstances(_ context.Context, opts provider.ListOptions) (provider.Page[provider.Instance], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	scope := opts.Region
	if opts.Zone != "" {
		scope = opts.Region + "/" + opts.Zone
	}
	if err := p.enter("ListInstances", opts.Region, scope); err != nil {
		return provider.Page[provider.Instance]{}, err
	}
	if p.meta.ZoneScoped && opts.Zone == "" {
		return provider.Page[provider.Instance]{}, fmt.Errorf("listing instances requires a zone")
	}

	var items []provider.Instance
	for _, id := range p.instanceIDs {
		st, ok := p.instances[id]
		if !ok {
			continue
		}
		if opts.Region != "" && st.inst.Region != opts.Region {
			continue
		}
		if opts.Zone != "" && st.inst.Zone != opts.Zone {
			continue
		}
		ok, err := matches(opts, st.inst.Labels)
		if err != nil {
			return provider.Page[provider.Instance]{}, err
		}
		if ok {
			items = append(items, snapshot(st.inst))
		}
	}
	return paginate(items, opts, p.pageSize)
}

func (p *Provider) DeleteInstance(_ context.Context, id string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("DeleteInstance", id); err != nil {
		return "", err
	}
	if _, ok := p.instances[id]; !ok {
		return "", provider.NotFound(provider.KindInstance, id)
	}
	delete(p.instances, id)
	p.instanceIDs = slices.DeleteFunc(p.instanceIDs, func(s string) bool { return s == id })
	p.recordDelete(provider.KindInstance, id)
	return p.addTask(provider.TaskKindUndeploy, "delete_instance", id), nil
}

func (p *Provider) StartInstance(_ context.Context, id string) (string, error) {
	return p.power("StartInstance", id, StatusRunning, provider.TaskKindPowerOn, "start_instance")
}

func (p *Provider) StopInstance(_ context.Context, id string) (string, error) {
	return p.power("StopInstance", id, StatusStopped, provider.TaskKindPowerOff, "stop_instance")
}

func (p *Provider) RebootInstance(_ context.Context, id string) (string, error) {
	return p.power("RebootInstance", id, StatusRunning, provider.TaskKindReboot, "reboot_instance")
}

func (p *Provider) power(op, id, status, kind, command string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(op, id); err != nil {
		return "", err
	}
	st, ok := p.instances[id]
	if !ok {
		return "", provider.NotFound(provider.KindInstance, id)
	}
	if st.inst.Status == StatusError || st.inst.Status == StatusProvisioning {
		return "", fmt.Errorf("instance %s is %s", id, st.inst.Status)
	}
	st.inst.Status = status
	return p.addTask(kind, command, id), nil
}

// SetInstanceStatus forces the vendor status of an instance.
func (p *Provider) SetInstanceStatus(id, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.instances[id]; ok {
		st.inst.Status = status
	}
}

func snapshot(inst provider.Instance) provider.Instance {
	inst.PublicIPs = slices.Clone(inst.PublicIPs)
	inst.PrivateIPs = slices.Clone(inst.PrivateIPs)
	inst.SecurityGroupIDs = slices.Clone(inst.SecurityGroupIDs)
	inst.Labels = cloneLabels(inst.Labels)
	nics := make([]provider.NIC, len(inst.NICs))
	for i, nic := range inst.NICs {
		nic.Addresses = slices.Clone(nic.Addresses)
		nics[i] = nic
	}
	inst.NICs = nics
	return inst
}
