package hcloud

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/util/retry"
)

// DeleteOperation encapsulates deletion logic for any hcloud resource.
// It provides consistent retry, timeout, and error handling across all resource types.
//
// Usage example:
//
//	return (&DeleteOperation[*hcloud.Firewall]{
//	    ID:   id,
//	    Kind: provider.KindSecurityGroup,
//	    Get: func(ctx context.Context) (*hcloud.Firewall, *hcloud.Response, error) {
//	        return p.client.Firewall.GetByID(ctx, n)
//	    },
//	    Delete: p.client.Firewall.Delete,
//	}).Execute(ctx, p)
type DeleteOperation[T any] struct {
	ID   string
	Kind provider.ResourceKind

	// Get retrieves the resource; a nil resource means it does not exist.
	Get func(ctx context.Context) (T, *hcloud.Response, error)

	// Delete removes the resource
	Delete func(ctx context.Context, resource T) (*hcloud.Response, error)
}

// Execute performs the delete operation with retry logic and timeout handling.
// A resource that is already gone yields provider.ErrNotFound. Locked
// resources are retried with exponential backoff.
func (op *DeleteOperation[T]) Execute(ctx context.Context, p *Provider) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Delete)
	defer cancel()

	first := true
	return retry.WithExponentialBackoff(ctx, func() error {
		resource, _, err := op.Get(ctx)
		if err != nil {
			return retry.Fatal(fmt.Errorf("failed to get %s %s: %w", op.Kind, op.ID, err))
		}

		if reflect.ValueOf(resource).IsNil() {
			if first {
				return retry.Fatal(provider.NotFound(op.Kind, op.ID))
			}
			// A previous attempt went through after all.
			return nil
		}
		first = false

		_, err = op.Delete(ctx, resource)
		if err != nil {
			if isResourceLocked(err) {
				return err
			}
			return retry.Fatal(wrap(err, "delete", op.Kind, op.ID))
		}
		return nil
	},
		retry.WithMaxRetries(p.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(p.timeouts.RetryInitialDelay))
}

// pageOptions translates a provider page request into hcloud list options.
// Markers are page numbers.
func pageOptions(opts provider.ListOptions) (hcloud.ListOpts, error) {
	lo := hcloud.ListOpts{LabelSelector: opts.LabelSelector, PerPage: opts.PageSize}
	if lo.PerPage > maxPerPage {
		lo.PerPage = maxPerPage
	}
	if opts.Marker != "" {
		page, ok := parseID(opts.Marker)
		if !ok {
			return lo, fmt.Errorf("invalid page marker %q", opts.Marker)
		}
		lo.Page = int(page)
	}
	return lo, nil
}

// maxPerPage is the largest page the API serves.
const maxPerPage = 50

func nextMarker(resp *hcloud.Response) string {
	if resp == nil || resp.Meta.Pagination == nil || resp.Meta.Pagination.NextPage == 0 {
		return ""
	}
	return fmt.Sprint(resp.Meta.Pagination.NextPage)
}
