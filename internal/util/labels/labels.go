package labels

import (
	"maps"
	"slices"
	"strings"

	k8slabels "k8s.io/apimachinery/pkg/labels"
)

// Standard label keys for provider resources.
const (
	// KeyGroup identifies the node group a resource belongs to
	KeyGroup = "nodekit.io/group"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "nodekit.io/managed-by"

	// KeyOwned marks resources created by the orchestrator itself
	KeyOwned = "nodekit.io/owned"

	// KeyOneTime marks owned resources that are discarded after the batch
	KeyOneTime = "nodekit.io/one-time"

	// KeyAttempt records the batch that created a resource
	KeyAttempt = "nodekit.io/attempt"

	// TagPrefix prefixes node tags stored as labels
	TagPrefix = "nodekit.io/tag-"
)

// ManagedByNodekit is the value of KeyManagedBy for everything nodekit creates.
const ManagedByNodekit = "nodekit"

// LabelBuilder provides a fluent interface for building resource labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the group name pre-set.
func NewLabelBuilder(group string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyGroup:     group,
			KeyManagedBy: ManagedByNodekit,
		},
	}
}

// WithOwned marks the resource as orchestrator-owned.
func (lb *LabelBuilder) WithOwned() *LabelBuilder {
	lb.labels[KeyOwned] = "true"
	return lb
}

// WithOneTime marks the resource as owned and short-lived.
func (lb *LabelBuilder) WithOneTime() *LabelBuilder {
	lb.labels[KeyOwned] = "true"
	lb.labels[KeyOneTime] = "true"
	return lb
}

// WithAttempt records the creating batch.
func (lb *LabelBuilder) WithAttempt(id string) *LabelBuilder {
	if id != "" {
		lb.labels[KeyAttempt] = id
	}
	return lb
}

// WithTags adds one label per tag.
func (lb *LabelBuilder) WithTags(tags []string) *LabelBuilder {
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			lb.labels[TagPrefix+tag] = "true"
		}
	}
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	maps.Copy(lb.labels, extra)
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	return maps.Clone(lb.labels)
}

// Tags extracts the node tags from a label set, sorted.
func Tags(l map[string]string) []string {
	var tags []string
	for k := range l {
		if tag, ok := strings.CutPrefix(k, TagPrefix); ok {
			tags = append(tags, tag)
		}
	}
	slices.Sort(tags)
	return tags
}

// IsOwned reports whether the label set marks an orchestrator-owned resource.
func IsOwned(l map[string]string) bool {
	return l[KeyOwned] == "true"
}

// IsOneTime reports whether the label set marks a one-time resource.
func IsOneTime(l map[string]string) bool {
	return IsOwned(l) && l[KeyOneTime] == "true"
}

// ForGroup selects every nodekit resource of a group.
func ForGroup(group string) k8slabels.Selector {
	return k8slabels.SelectorFromSet(k8slabels.Set{
		KeyGroup:     group,
		KeyManagedBy: ManagedByNodekit,
	})
}

// OwnedInGroup selects the orchestrator-owned resources of a group.
func OwnedInGroup(group string) k8slabels.Selector {
	return k8slabels.SelectorFromSet(k8slabels.Set{
		KeyGroup:     group,
		KeyManagedBy: ManagedByNodekit,
		KeyOwned:     "true",
	})
}

// Matches reports whether the label set satisfies the selector. A nil
// selector matches everything.
func Matches(sel k8slabels.Selector, l map[string]string) bool {
	if sel == nil {
		return true
	}
	return sel.Matches(k8slabels.Set(l))
}

// Parse parses a selector string such as "nodekit.io/group=web".
// The empty string selects everything.
func Parse(selector string) (k8slabels.Selector, error) {
	return k8slabels.Parse(selector)
}
