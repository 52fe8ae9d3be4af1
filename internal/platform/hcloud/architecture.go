package hcloud

import (
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// Portable architecture names.
const (
	ArchAMD64 = "x86_64"
	ArchARM64 = "arm64"
)

// architecture converts a Hetzner architecture to its portable name.
func architecture(a hcloud.Architecture) string {
	switch a {
	case hcloud.ArchitectureARM:
		return ArchARM64
	case hcloud.ArchitectureX86:
		return ArchAMD64
	default:
		return string(a)
	}
}

// DetectArchitecture determines the CPU architecture from a server type name
// when the API does not report one. CAX server types use ARM64.
//
// Examples:
//   - "cpx22", "cpx21", "ccx33" -> x86_64
//   - "cax11", "cax21", "cax31" -> arm64
func DetectArchitecture(serverType string) string {
	if strings.HasPrefix(serverType, "cax") {
		return ArchARM64
	}
	return ArchAMD64
}
