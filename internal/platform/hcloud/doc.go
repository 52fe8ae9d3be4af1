// Package hcloud implements provider.Client on top of the Hetzner Cloud API.
//
// Vendor concepts map onto the portable provider contract as follows:
//
//   - locations are regions, datacenters are their zones
//   - server types are flavors, servers are instances
//   - firewalls are security groups, SSH keys are key pairs
//   - network subnets are addressed as "<network id>/<cidr>"
//   - actions are tasks
//
// All wire handling is delegated to hcloud-go. Requests pass through a
// token bucket so that large fan-outs stay below the API rate limit.
package hcloud
