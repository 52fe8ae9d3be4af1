package compute

import "strings"

// OSFamily is the normalized operating system family of an image or node.
type OSFamily string

// Known operating system families. The order of [OSFamilies] matters for
// detection: more specific names come before names they contain.
const (
	OSUbuntu       OSFamily = "ubuntu"
	OSDebian       OSFamily = "debian"
	OSCentOS       OSFamily = "centos"
	OSRocky        OSFamily = "rocky"
	OSAlma         OSFamily = "alma"
	OSFedora       OSFamily = "fedora"
	OSRHEL         OSFamily = "rhel"
	OSOracle       OSFamily = "oel"
	OSSUSE         OSFamily = "suse"
	OSOpenSUSE     OSFamily = "opensuse"
	OSCoreOS       OSFamily = "coreos"
	OSFlatcar      OSFamily = "flatcar"
	OSTalos        OSFamily = "talos"
	OSArch         OSFamily = "arch"
	OSGentoo       OSFamily = "gentoo"
	OSAmazonLinux  OSFamily = "amzn-linux"
	OSFreeBSD      OSFamily = "freebsd"
	OSOpenBSD      OSFamily = "openbsd"
	OSNetBSD       OSFamily = "netbsd"
	OSWindows      OSFamily = "windows"
	OSLinux        OSFamily = "linux"
	OSUnrecognized OSFamily = "unrecognized"
)

// OSFamilies is the fixed list consulted when detecting a family from a
// vendor platform string. Generic "linux" is last and only matches after
// the alias tables so distributions win.
var OSFamilies = []OSFamily{
	OSOpenSUSE, OSUbuntu, OSDebian, OSCentOS, OSRocky, OSAlma, OSFedora, OSRHEL,
	OSOracle, OSSUSE, OSCoreOS, OSFlatcar, OSTalos, OSGentoo, OSAmazonLinux,
	OSFreeBSD, OSOpenBSD, OSNetBSD, OSWindows, OSArch, OSLinux,
}

// ParseOSFamily returns the family whose name equals s (case-insensitive),
// or OSUnrecognized.
func ParseOSFamily(s string) OSFamily {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, f := range OSFamilies {
		if string(f) == s {
			return f
		}
	}
	return OSUnrecognized
}

// OperatingSystem describes what runs on an image or node.
type OperatingSystem struct {
	Family      OSFamily `json:"family"`
	Version     string   `json:"version,omitempty"`
	Arch        string   `json:"arch,omitempty"`
	Description string   `json:"description,omitempty"`
	Is64Bit     bool     `json:"is64Bit"`
}

// ImageStatus is the portable availability status of an image.
type ImageStatus string

const (
	ImageAvailable    ImageStatus = "AVAILABLE"
	ImagePending      ImageStatus = "PENDING"
	ImageDeleted      ImageStatus = "DELETED"
	ImageError        ImageStatus = "ERROR"
	ImageUnrecognized ImageStatus = "UNRECOGNIZED"
)

// Image is a bootable template. Images are read-only and come from provider listings.
type Image struct {
	ID            string            `json:"id"`
	ProviderID    string            `json:"providerId"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	Version       string            `json:"version,omitempty"`
	OS            OperatingSystem   `json:"os"`
	Status        ImageStatus       `json:"status"`
	BackendStatus string            `json:"backendStatus,omitempty"`
	Location      *Location         `json:"location,omitempty"`
	DefaultUser   string            `json:"defaultUser,omitempty"`
	UserMetadata  map[string]string `json:"userMetadata,omitempty"`
}
