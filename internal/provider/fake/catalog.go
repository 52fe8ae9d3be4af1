package fake

import (
	"context"
	"slices"

	"github.com/imamik/nodekit/internal/provider"
)

// DefaultRegions returns two regions, the first with two zones.
func DefaultRegions() []provider.Region {
	return []provider.Region{
		{
			ID: "eu-central", Name: "Falkenstein", Country: "DE", City: "Falkenstein",
			Zones: []provider.Zone{
				{ID: "eu-central-1a", Name: "fsn1-dc14", Region: "eu-central"},
				{ID: "eu-central-1b", Name: "fsn1-dc15", Region: "eu-central"},
			},
		},
		{
			ID: "us-east", Name: "Ashburn", Country: "US", City: "Ashburn, VA",
			Zones: []provider.Zone{
				{ID: "us-east-1a", Name: "ash-dc1", Region: "us-east"},
			},
		},
	}
}

// DefaultImages returns a small set of public images.
func DefaultImages() []provider.Image {
	return []provider.Image{
		{ID: "img-ubuntu-2404", Name: "ubuntu-24.04", Description: "Ubuntu 24.04", OSFlavor: "ubuntu", OSVersion: "24.04", Architecture: "x86", Status: "available", DefaultUser: "ubuntu"},
		{ID: "img-debian-12", Name: "debian-12", Description: "Debian 12", OSFlavor: "debian", OSVersion: "12", Architecture: "x86", Status: "available"},
		{ID: "img-rocky-9", Name: "rocky-9", Description: "Rocky Linux 9", OSFlavor: "rocky", OSVersion: "9", Architecture: "arm", Status: "available"},
		{ID: "img-penguin", Name: "penguin-1", Description: "Fancy Penguin", OSFlavor: "penguin", OSVersion: "1", Architecture: "x86", Status: "creating", Region: "eu-central"},
	}
}

// DefaultFlavors returns three x86 shapes.
func DefaultFlavors() []provider.Flavor {
	return []provider.Flavor{
		{ID: "small", Name: "small", Cores: 1, CPUSpeed: 2.0, MemoryMB: 2048, DiskGB: 20, LocalDisk: true, Architecture: "x86"},
		{ID: "medium", Name: "medium", Cores: 2, CPUSpeed: 2.0, MemoryMB: 4096, DiskGB: 40, LocalDisk: true, Architecture: "x86"},
		{ID: "large", Name: "large", Cores: 4, CPUSpeed: 2.4, MemoryMB: 8192, DiskGB: 80, Architecture: "x86", Regions: []string{"eu-central"}},
	}
}

func (p *Provider) ListRegions(_ context.Context) ([]provider.Region, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ListRegions"); err != nil {
		return nil, err
	}
	return slices.Clone(p.regions), nil
}

func (p *Provider) ListImages(_ context.Context, opts provider.ListOptions) (provider.Page[provider.Image], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ListImages", opts.Region); err != nil {
		return provider.Page[provider.Image]{}, err
	}
	var items []provider.Image
	for _, img := range p.images {
		if opts.Region != "" && img.Region != "" && img.Region != opts.Region {
			continue
		}
		items = append(items, img)
	}
	return paginate(items, opts, p.pageSize)
}

func (p *Provider) ListFlavors(_ context.Context, opts provider.ListOptions) (provider.Page[provider.Flavor], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ListFlavors", opts.Region); err != nil {
		return provider.Page[provider.Flavor]{}, err
	}
	var items []provider.Flavor
	for _, f := range p.flavors {
		if opts.Region != "" && len(f.Regions) > 0 && !slices.Contains(f.Regions, opts.Region) {
			continue
		}
		items = append(items, f)
	}
	return paginate(items, opts, p.pageSize)
}
