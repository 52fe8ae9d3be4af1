package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodekit/internal/provider"
)

// ListRegions returns every location with its datacenters as zones.
func (p *Provider) ListRegions(ctx context.Context) ([]provider.Region, error) {
	locations, err := p.client.Location.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	datacenters, err := p.client.Datacenter.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list datacenters: %w", err)
	}

	regions := make([]provider.Region, 0, len(locations))
	for _, loc := range locations {
		region := provider.Region{
			ID:      loc.Name,
			Name:    loc.Description,
			Country: loc.Country,
			City:    loc.City,
		}
		for _, dc := range datacenters {
			if dc.Location != nil && dc.Location.Name == loc.Name {
				region.Zones = append(region.Zones, provider.Zone{
					ID:     dc.Name,
					Name:   dc.Description,
					Region: loc.Name,
				})
			}
		}
		regions = append(regions, region)
	}
	return regions, nil
}

// ListImages returns one page of system images and snapshots. Hetzner
// images are global, so the region filter does not apply.
func (p *Provider) ListImages(ctx context.Context, opts provider.ListOptions) (provider.Page[provider.Image], error) {
	lo, err := pageOptions(opts)
	if err != nil {
		return provider.Page[provider.Image]{}, err
	}
	images, resp, err := p.client.Image.List(ctx, hcloud.ImageListOpts{
		ListOpts:          lo,
		Type:              []hcloud.ImageType{hcloud.ImageTypeSystem, hcloud.ImageTypeSnapshot},
		IncludeDeprecated: true,
	})
	if err != nil {
		return provider.Page[provider.Image]{}, fmt.Errorf("failed to list images: %w", err)
	}

	page := provider.Page[provider.Image]{Next: nextMarker(resp)}
	for _, img := range images {
		page.Items = append(page.Items, toImage(img))
	}
	return page, nil
}

// ListFlavors returns one page of server types.
func (p *Provider) ListFlavors(ctx context.Context, opts provider.ListOptions) (provider.Page[provider.Flavor], error) {
	lo, err := pageOptions(opts)
	if err != nil {
		return provider.Page[provider.Flavor]{}, err
	}
	types, resp, err := p.client.ServerType.List(ctx, hcloud.ServerTypeListOpts{ListOpts: lo})
	if err != nil {
		return provider.Page[provider.Flavor]{}, fmt.Errorf("failed to list server types: %w", err)
	}

	page := provider.Page[provider.Flavor]{Next: nextMarker(resp)}
	for _, st := range types {
		page.Items = append(page.Items, toFlavor(st))
	}
	return page, nil
}

func toImage(img *hcloud.Image) provider.Image {
	name := img.Name
	if name == "" {
		name = img.Description
	}
	return provider.Image{
		ID:           formatID(img.ID),
		Name:         name,
		Description:  img.Description,
		OSFlavor:     img.OSFlavor,
		OSVersion:    img.OSVersion,
		Architecture: architecture(img.Architecture),
		Status:       string(img.Status),
		DefaultUser:  "root",
		Deprecated:   img.IsDeprecated(),
		Labels:       img.Labels,
	}
}

func toFlavor(st *hcloud.ServerType) provider.Flavor {
	arch := architecture(st.Architecture)
	if arch == "" {
		arch = DetectArchitecture(st.Name)
	}
	return provider.Flavor{
		ID:           st.Name,
		Name:         st.Name,
		Description:  st.Description,
		Cores:        st.Cores,
		MemoryMB:     int(st.Memory * 1024),
		DiskGB:       st.Disk,
		LocalDisk:    st.StorageType == hcloud.StorageTypeLocal,
		Architecture: arch,
		Deprecated:   st.IsDeprecated(),
	}
}
