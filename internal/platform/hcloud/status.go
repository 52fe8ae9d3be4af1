package hcloud

import (
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodekit/pkg/compute"
)

// nodeStatus maps every documented server status. Transitional states are
// PENDING; a stopped server is SUSPENDED.
var nodeStatus = map[string]compute.NodeStatus{
	string(hcloud.ServerStatusInitializing): compute.NodePending,
	string(hcloud.ServerStatusStarting):     compute.NodePending,
	string(hcloud.ServerStatusRunning):      compute.NodeRunning,
	string(hcloud.ServerStatusStopping):     compute.NodePending,
	string(hcloud.ServerStatusOff):          compute.NodeSuspended,
	string(hcloud.ServerStatusDeleting):     compute.NodePending,
	string(hcloud.ServerStatusMigrating):    compute.NodePending,
	string(hcloud.ServerStatusRebuilding):   compute.NodePending,
	string(hcloud.ServerStatusUnknown):      compute.NodeUnrecognized,
}

var imageStatus = map[string]compute.ImageStatus{
	string(hcloud.ImageStatusAvailable): compute.ImageAvailable,
	string(hcloud.ImageStatusCreating):  compute.ImagePending,
	"unavailable":                       compute.ImageError,
}

// osAliases covers os_flavor values that do not name a family. Custom
// snapshots report "unknown" and are Linux in practice.
var osAliases = map[string]compute.OSFamily{
	"unknown": compute.OSLinux,
}
