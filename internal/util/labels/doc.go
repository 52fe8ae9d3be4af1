// Package labels provides consistent labeling for provider resources.
//
// All labels use the nodekit.io domain prefix and follow a builder pattern
// for constructing label sets with group name, ownership and manager
// identification. Free-form node tags are carried as nodekit.io/tag-<tag>
// labels so that every provider can store them as plain key/value pairs.
package labels
