// Package provider defines the contract between the portable compute core
// and a vendor API client.
//
// A [Client] exposes create/get/list/delete and power operations per
// resource kind, returning vendor-shaped DTOs with vendor status strings.
// The core never interprets a vendor status itself: every client publishes
// a [Metadata] table that maps its strings onto the portable model.
//
// Conventions every implementation follows:
//
//   - Get* returns (nil, nil) when the resource does not exist.
//   - Delete* and the power operations return an error wrapping
//     [ErrNotFound] when the resource does not exist.
//   - List* returns one [Page] and a marker for the next one.
package provider
