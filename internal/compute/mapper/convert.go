package mapper

import (
	"maps"
	"net/netip"
	"slices"
	"strings"

	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/pkg/compute"
)

// builtinOSAliases resolves vendor platform strings that do not contain a
// family name. Provider aliases are merged over these.
var builtinOSAliases = map[string]compute.OSFamily{
	"red hat":      compute.OSRHEL,
	"redhat":       compute.OSRHEL,
	"amazon linux": compute.OSAmazonLinux,
	"amzn":         compute.OSAmazonLinux,
	"sles":         compute.OSSUSE,
	"oracle linux": compute.OSOracle,
	"almalinux":    compute.OSAlma,
	"microsoft":    compute.OSWindows,
	"container-os": compute.OSCoreOS,
}

// DetectOS maps a vendor platform string to an OS family. The fixed family
// list is consulted first, then the aliases merged over the built-in ones.
// Longer aliases win over shorter ones they contain. Generic linux only
// matches when neither a distribution nor an alias does.
func DetectOS(platform string, aliases map[string]compute.OSFamily) compute.OSFamily {
	p := strings.ToLower(platform)
	if strings.TrimSpace(p) == "" {
		return compute.OSUnrecognized
	}
	for _, f := range compute.OSFamilies {
		if f != compute.OSLinux && strings.Contains(p, string(f)) {
			return f
		}
	}

	merged := maps.Clone(builtinOSAliases)
	for k, v := range aliases {
		merged[strings.ToLower(k)] = v
	}
	keys := slices.Collect(maps.Keys(merged))
	slices.SortFunc(keys, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	for _, k := range keys {
		if strings.Contains(p, k) {
			return merged[k]
		}
	}
	if strings.Contains(p, string(compute.OSLinux)) {
		return compute.OSLinux
	}
	return compute.OSUnrecognized
}

// NodeStatus looks vendor up in the provider's status table.
func NodeStatus(meta provider.Metadata, vendor string) compute.NodeStatus {
	if s, ok := meta.NodeStatus[vendor]; ok {
		return s
	}
	return compute.NodeUnrecognized
}

// ImageStatus looks vendor up in the provider's image status table.
func ImageStatus(meta provider.Metadata, vendor string) compute.ImageStatus {
	if s, ok := meta.ImageStatus[vendor]; ok {
		return s
	}
	return compute.ImageUnrecognized
}

// sharedAddressSpace is the carrier-grade NAT range of RFC 6598.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// IsPrivate reports whether addr lies in RFC 1918, RFC 4193 or RFC 6598
// space. Unparseable addresses are not private.
func IsPrivate(addr string) bool {
	ip, err := netip.ParseAddr(strings.TrimSpace(addr))
	if err != nil {
		return false
	}
	ip = ip.Unmap()
	return ip.IsPrivate() || sharedAddressSpace.Contains(ip)
}

// Addresses collects every address of inst, drops duplicates and splits
// them into public and private addresses. Input order is kept.
func Addresses(inst provider.Instance) (public, private []string) {
	seen := map[string]bool{}
	add := func(addr string) {
		addr = strings.TrimSpace(addr)
		if addr == "" || seen[addr] {
			return
		}
		seen[addr] = true
		if IsPrivate(addr) {
			private = append(private, addr)
		} else {
			public = append(public, addr)
		}
	}
	for _, a := range inst.PublicIPs {
		add(a)
	}
	for _, a := range inst.PrivateIPs {
		add(a)
	}
	for _, nic := range inst.NICs {
		for _, a := range nic.Addresses {
			add(a)
		}
	}
	return public, private
}

var taskStatus = map[string]compute.TaskStatus{
	provider.TaskQueued:  compute.TaskQueued,
	provider.TaskRunning: compute.TaskRunning,
	provider.TaskSuccess: compute.TaskSucceeded,
	provider.TaskError:   compute.TaskFailed,
}

// Task converts a provider task into its variant of the task union.
func Task(t provider.Task) compute.Task {
	status, ok := taskStatus[t.Status]
	if !ok {
		status = compute.TaskUnknown
	}
	info := compute.TaskInfo{
		ID:       t.ID,
		OwnerID:  t.ResourceID,
		Command:  t.Command,
		Status:   status,
		Started:  t.Started,
		Finished: t.Finished,
		Error:    t.Error,
	}
	switch t.Kind {
	case provider.TaskKindDeploy:
		return compute.DeployTask{TaskInfo: info}
	case provider.TaskKindUndeploy:
		return compute.UndeployTask{TaskInfo: info}
	case provider.TaskKindPowerOn:
		return compute.PowerTask{TaskInfo: info, On: true}
	case provider.TaskKindPowerOff:
		return compute.PowerTask{TaskInfo: info}
	case provider.TaskKindReboot:
		return compute.RebootTask{TaskInfo: info}
	case provider.TaskKindReset:
		return compute.RebootTask{TaskInfo: info, Hard: true}
	case provider.TaskKindSnapshot:
		return compute.SnapshotTask{TaskInfo: info}
	case provider.TaskKindReconfigure:
		return compute.ReconfigureTask{TaskInfo: info}
	default:
		return compute.GenericTask{TaskInfo: info}
	}
}

// Locations builds the location tree of a provider: one provider-scoped
// root, its regions and their zones, parents before children.
func Locations(providerName string, regions []provider.Region) []*compute.Location {
	root := &compute.Location{ID: providerName, Description: providerName, Scope: compute.ScopeProvider}
	out := []*compute.Location{root}
	for _, r := range regions {
		var codes []string
		if r.Country != "" {
			codes = []string{strings.ToUpper(r.Country)}
		}
		region := &compute.Location{
			ID:           r.ID,
			Description:  r.Name,
			Scope:        compute.ScopeRegion,
			Parent:       root,
			ISO3166Codes: codes,
		}
		if r.City != "" {
			region.Metadata = map[string]string{"city": r.City}
		}
		out = append(out, region)
		for _, z := range r.Zones {
			out = append(out, &compute.Location{
				ID:           z.ID,
				Description:  z.Name,
				Scope:        compute.ScopeZone,
				Parent:       region,
				ISO3166Codes: codes,
			})
		}
	}
	return out
}

func is64Bit(arch string) bool {
	a := strings.ToLower(arch)
	return strings.Contains(a, "64") || a == "x86" || a == "arm"
}

func platformOf(img provider.Image) string {
	return strings.Join([]string{img.OSFlavor, img.Name, img.Description}, " ")
}
