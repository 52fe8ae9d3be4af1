package strategy

import (
	"context"
	"slices"
	"sync"

	"github.com/imamik/nodekit/internal/provider"
)

// PendingResource is a resource a batch created and may have to remove.
type PendingResource struct {
	Kind    provider.ResourceKind
	ID      string
	OneTime bool
}

// Ledger records the resources of one batch in creation order. Reused
// resources are never recorded, so rolling back a ledger only removes what
// the batch itself created.
type Ledger struct {
	mu    sync.Mutex
	items []PendingResource
}

// Record appends r.
func (l *Ledger) Record(r PendingResource) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, r)
}

// Resources returns the recorded resources in creation order.
func (l *Ledger) Resources() []PendingResource {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.items)
}

// OneTime returns the one-time resources in creation order.
func (l *Ledger) OneTime() []PendingResource {
	return slices.DeleteFunc(l.Resources(), func(r PendingResource) bool { return !r.OneTime })
}

// Shared returns the resources that outlive the batch, in creation order.
func (l *Ledger) Shared() []PendingResource {
	return slices.DeleteFunc(l.Resources(), func(r PendingResource) bool { return r.OneTime })
}

// rollback removes resources in reverse creation order. Every resource is
// attempted, even after ctx is done; the failures are collected.
func rollback(ctx context.Context, d Deps, group string, resources []PendingResource) error {
	cleanupErr := &CleanupError{}
	for _, r := range slices.Backward(resources) {
		cleanupErr.Add(compensate(ctx, d, group, r.Kind, r.ID))
	}
	return cleanupErr.ErrOrNil()
}
