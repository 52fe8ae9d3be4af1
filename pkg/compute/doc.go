// Package compute defines the portable compute model shared by every provider.
//
// Vendor clients speak their own wire formats; everything that leaves the
// library is expressed with the types in this package:
//
//   - [Node]: a compute instance and its lifecycle [NodeStatus]
//   - [Image]: a bootable template with its [OperatingSystem]
//   - [Hardware]: a compute shape (processors, RAM, volumes)
//   - [Location]: a provider/region/zone tree, parent pointers only
//   - [SecurityGroup], [Volume], [Task]
//
// Values are immutable snapshots. Operations that act on them go through a
// [ComputeService], which is passed around separately instead of being
// embedded in the domain objects.
package compute
