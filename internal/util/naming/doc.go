// Package naming provides consistent naming functions for nodes and the
// shared resources the orchestrator creates for them.
//
// Node names follow the pattern {group}-{5char}; the group of a node is
// recovered by dropping the final suffix. Shared resources follow
// nodekit-{group} so that they are recognisable in the provider console.
package naming
