// Package mapper converts vendor DTOs into the portable compute model.
//
// The conversion functions are pure. A Mapper adds memoized lookups of the
// provider catalog so nodes can be resolved to their location, image and
// hardware without listing the catalog for every node. Unknown ids never
// fail a conversion: the field is left nil and the miss is logged at debug
// level.
package mapper

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/util/labels"
	"github.com/imamik/nodekit/internal/util/memo"
	"github.com/imamik/nodekit/internal/util/naming"
	"github.com/imamik/nodekit/pkg/compute"
)

// DefaultCatalogTTL is how long a loaded catalog is served from memory.
const DefaultCatalogTTL = 5 * time.Minute

// debugLevel is the logr verbosity of lookup misses.
const debugLevel = 1

// Catalog loads the raw provider catalog.
type Catalog interface {
	Regions(ctx context.Context) ([]provider.Region, error)
	Images(ctx context.Context) ([]provider.Image, error)
	Flavors(ctx context.Context) ([]provider.Flavor, error)
}

// Mapper converts DTOs of one provider.
type Mapper struct {
	meta provider.Metadata
	log  logr.Logger

	locations *memo.Supplier[map[string]*compute.Location]
	images    *memo.Supplier[map[string]*compute.Image]
	hardware  *memo.Supplier[map[string]*compute.Hardware]
}

// Option configures a Mapper.
type Option func(*options)

type options struct {
	log logr.Logger
	ttl time.Duration
}

// WithLogger sets the logger used for lookup misses.
func WithLogger(log logr.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithTTL sets how long the catalog is cached. Zero caches forever.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// New returns a Mapper whose lookups are loaded from catalog.
func New(meta provider.Metadata, catalog Catalog, opts ...Option) *Mapper {
	o := options{log: logr.Discard(), ttl: DefaultCatalogTTL}
	for _, opt := range opts {
		opt(&o)
	}
	m := &Mapper{meta: meta, log: o.log.WithName("mapper")}

	m.locations = memo.NewSupplier(o.ttl, func(ctx context.Context) (map[string]*compute.Location, error) {
		regions, err := catalog.Regions(ctx)
		if err != nil {
			return nil, err
		}
		out := map[string]*compute.Location{}
		for _, l := range Locations(meta.Name, regions) {
			out[l.ID] = l
		}
		return out, nil
	})
	m.images = memo.NewSupplier(o.ttl, func(ctx context.Context) (map[string]*compute.Image, error) {
		locs, err := m.locations.Get(ctx)
		if err != nil {
			return nil, err
		}
		imgs, err := catalog.Images(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[string]*compute.Image, len(imgs))
		for _, img := range imgs {
			out[img.ID] = m.Image(img, locs)
		}
		return out, nil
	})
	m.hardware = memo.NewSupplier(o.ttl, func(ctx context.Context) (map[string]*compute.Hardware, error) {
		locs, err := m.locations.Get(ctx)
		if err != nil {
			return nil, err
		}
		flavors, err := catalog.Flavors(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[string]*compute.Hardware, len(flavors))
		for _, f := range flavors {
			out[f.ID] = m.Hardware(f, locs)
		}
		return out, nil
	})
	return m
}

// Metadata returns the provider metadata the mapper reads statuses with.
func (m *Mapper) Metadata() provider.Metadata {
	return m.meta
}

// Invalidate drops every cached catalog.
func (m *Mapper) Invalidate() {
	m.locations.Invalidate()
	m.images.Invalidate()
	m.hardware.Invalidate()
}

// Locations returns the cached location tree keyed by id.
func (m *Mapper) Locations(ctx context.Context) (map[string]*compute.Location, error) {
	return m.locations.Get(ctx)
}

// Images returns the cached image catalog keyed by id.
func (m *Mapper) Images(ctx context.Context) (map[string]*compute.Image, error) {
	return m.images.Get(ctx)
}

// HardwareProfiles returns the cached hardware catalog keyed by id.
func (m *Mapper) HardwareProfiles(ctx context.Context) (map[string]*compute.Hardware, error) {
	return m.hardware.Get(ctx)
}

// LookupImage finds an image by id, then by name. It returns nil when the
// image is unknown or the catalog cannot be loaded.
func (m *Mapper) LookupImage(ctx context.Context, ref string) *compute.Image {
	if ref == "" {
		return nil
	}
	imgs, err := m.images.Get(ctx)
	if err != nil {
		m.log.V(debugLevel).Info("image catalog unavailable", "image", ref, "error", err.Error())
		return nil
	}
	if img, ok := imgs[ref]; ok {
		return img
	}
	for _, img := range imgs {
		if img.Name == ref {
			return img
		}
	}
	m.log.V(debugLevel).Info("unknown image", "image", ref)
	return nil
}

// LookupHardware finds a hardware profile by id, then by name.
func (m *Mapper) LookupHardware(ctx context.Context, ref string) *compute.Hardware {
	if ref == "" {
		return nil
	}
	hw, err := m.hardware.Get(ctx)
	if err != nil {
		m.log.V(debugLevel).Info("hardware catalog unavailable", "hardware", ref, "error", err.Error())
		return nil
	}
	if h, ok := hw[ref]; ok {
		return h
	}
	for _, h := range hw {
		if h.Name == ref {
			return h
		}
	}
	m.log.V(debugLevel).Info("unknown hardware", "hardware", ref)
	return nil
}

// LookupLocation finds a location by id.
func (m *Mapper) LookupLocation(ctx context.Context, id string) *compute.Location {
	if id == "" {
		return nil
	}
	locs, err := m.locations.Get(ctx)
	if err != nil {
		m.log.V(debugLevel).Info("location catalog unavailable", "location", id, "error", err.Error())
		return nil
	}
	return m.location(locs, id)
}

func (m *Mapper) location(locs map[string]*compute.Location, id string) *compute.Location {
	if id == "" {
		return nil
	}
	if l, ok := locs[id]; ok {
		return l
	}
	m.log.V(debugLevel).Info("unknown location", "location", id)
	return nil
}

// Node converts an instance. The location is the zone when known, else the
// region.
func (m *Mapper) Node(ctx context.Context, inst provider.Instance) *compute.Node {
	public, private := Addresses(inst)
	group := inst.Labels[labels.KeyGroup]
	if group == "" {
		group = naming.GroupFromNodeName(inst.Name)
	}

	n := &compute.Node{
		ID:               inst.ID,
		ProviderID:       inst.ID,
		Name:             inst.Name,
		Hostname:         inst.Name,
		Group:            group,
		Status:           NodeStatus(m.meta, inst.Status),
		BackendStatus:    inst.Status,
		ImageID:          inst.ImageID,
		PublicAddresses:  public,
		PrivateAddresses: private,
		LoginPort:        m.meta.LoginPort,
		Tags:             labels.Tags(inst.Labels),
		UserMetadata:     userMetadata(inst.Labels),
	}

	loc := inst.Zone
	if loc == "" {
		loc = inst.Region
	}
	n.Location = m.LookupLocation(ctx, loc)
	if img := m.LookupImage(ctx, inst.ImageID); img != nil {
		osInfo := img.OS
		n.OS = &osInfo
	}
	n.Hardware = m.LookupHardware(ctx, inst.FlavorID)
	return n
}

// Image converts a vendor image. locs resolves the image's region.
func (m *Mapper) Image(img provider.Image, locs map[string]*compute.Location) *compute.Image {
	name := img.Name
	if name == "" {
		name = img.Description
	}
	return &compute.Image{
		ID:          img.ID,
		ProviderID:  img.ID,
		Name:        name,
		Description: img.Description,
		Version:     img.OSVersion,
		OS: compute.OperatingSystem{
			Family:      DetectOS(platformOf(img), m.meta.OSAliases),
			Version:     img.OSVersion,
			Arch:        img.Architecture,
			Description: img.Description,
			Is64Bit:     is64Bit(img.Architecture),
		},
		Status:        ImageStatus(m.meta, img.Status),
		BackendStatus: img.Status,
		Location:      m.location(locs, img.Region),
		DefaultUser:   img.DefaultUser,
		UserMetadata:  maps.Clone(img.Labels),
	}
}

// Hardware converts a flavor. A flavor restricted to exactly one region is
// located there.
func (m *Mapper) Hardware(f provider.Flavor, locs map[string]*compute.Location) *compute.Hardware {
	name := f.Name
	if name == "" {
		name = f.ID
	}
	h := &compute.Hardware{
		ID:         f.ID,
		ProviderID: f.ID,
		Name:       name,
		Processors: []compute.Processor{{Cores: float64(f.Cores), Speed: f.CPUSpeed}},
		RAM:        f.MemoryMB,
		Arch:       f.Architecture,
		Deprecated: f.Deprecated,
	}
	if f.DiskGB > 0 {
		vt := compute.VolumeSAN
		if f.LocalDisk {
			vt = compute.VolumeLocal
		}
		h.Volumes = []compute.Volume{{Type: vt, SizeGB: float64(f.DiskGB), Durable: true, BootDevice: true}}
	}
	if len(f.Regions) == 1 {
		h.Location = m.location(locs, f.Regions[0])
	}
	return h
}

// SecurityGroup converts a security group.
func (m *Mapper) SecurityGroup(sg provider.SecurityGroup, locs map[string]*compute.Location) *compute.SecurityGroup {
	perms := make([]compute.IPPermission, 0, len(sg.Rules))
	for _, r := range sg.Rules {
		perms = append(perms, compute.IPPermission{
			Protocol:   r.Protocol,
			FromPort:   r.FromPort,
			ToPort:     r.ToPort,
			CIDRBlocks: r.CIDRs,
		})
	}
	return &compute.SecurityGroup{
		ID:          sg.ID,
		ProviderID:  sg.ID,
		Name:        sg.Name,
		NetworkID:   sg.NetworkID,
		Location:    m.location(locs, sg.Region),
		Permissions: perms,
		Tags:        maps.Clone(sg.Labels),
	}
}

// userMetadata returns the labels nodekit did not set itself.
func userMetadata(l map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range l {
		if !isReserved(k) {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isReserved(key string) bool {
	return strings.HasPrefix(key, "nodekit.io/")
}
