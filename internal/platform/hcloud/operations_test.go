package hcloud

import (
	"context"
	"errors"
	"testing"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodekit/internal/config"
	"github.com/imamik/nodekit/internal/provider"
)

// testProviderMinimal creates a Provider with test timeouts whose client is
// never reached.
func testProviderMinimal() *Provider {
	return &Provider{timeouts: config.TestTimeouts(), actions: map[string][]int64{}}
}

func TestDeleteOperation_ResourceExists(t *testing.T) {
	t.Parallel()

	fw := &hcloud.Firewall{ID: 1, Name: "test-fw"}
	deleteCalled := false

	op := &DeleteOperation[*hcloud.Firewall]{
		ID:   "1",
		Kind: provider.KindSecurityGroup,
		Get: func(_ context.Context) (*hcloud.Firewall, *hcloud.Response, error) {
			return fw, nil, nil
		},
		Delete: func(_ context.Context, resource *hcloud.Firewall) (*hcloud.Response, error) {
			deleteCalled = true
			assert.Equal(t, fw, resource)
			return nil, nil
		},
	}

	require.NoError(t, op.Execute(context.Background(), testProviderMinimal()))
	assert.True(t, deleteCalled, "Delete should have been called")
}

func TestDeleteOperation_ResourceNotFound(t *testing.T) {
	t.Parallel()

	op := &DeleteOperation[*hcloud.Firewall]{
		ID:   "1",
		Kind: provider.KindSecurityGroup,
		Get: func(_ context.Context) (*hcloud.Firewall, *hcloud.Response, error) {
			return nil, nil, nil
		},
		Delete: func(_ context.Context, _ *hcloud.Firewall) (*hcloud.Response, error) {
			t.Fatal("Delete should not be called")
			return nil, nil
		},
	}

	err := op.Execute(context.Background(), testProviderMinimal())
	require.Error(t, err)
	assert.True(t, provider.IsNotFound(err))
}

func TestDeleteOperation_LockedIsRetried(t *testing.T) {
	t.Parallel()

	attempts := 0
	op := &DeleteOperation[*hcloud.Network]{
		ID:   "5",
		Kind: provider.KindNetwork,
		Get: func(_ context.Context) (*hcloud.Network, *hcloud.Response, error) {
			return &hcloud.Network{ID: 5}, nil, nil
		},
		Delete: func(_ context.Context, _ *hcloud.Network) (*hcloud.Response, error) {
			attempts++
			if attempts < 3 {
				return nil, hcloud.Error{Code: hcloud.ErrorCodeLocked, Message: "locked"}
			}
			return nil, nil
		},
	}

	require.NoError(t, op.Execute(context.Background(), testProviderMinimal()))
	assert.Equal(t, 3, attempts)
}

func TestDeleteOperation_GoneAfterRetry(t *testing.T) {
	t.Parallel()

	gets := 0
	op := &DeleteOperation[*hcloud.SSHKey]{
		ID:   "key",
		Kind: provider.KindKeyPair,
		Get: func(_ context.Context) (*hcloud.SSHKey, *hcloud.Response, error) {
			gets++
			if gets == 1 {
				return &hcloud.SSHKey{ID: 1, Name: "key"}, nil, nil
			}
			return nil, nil, nil
		},
		Delete: func(_ context.Context, _ *hcloud.SSHKey) (*hcloud.Response, error) {
			return nil, hcloud.Error{Code: hcloud.ErrorCodeConflict}
		},
	}

	require.NoError(t, op.Execute(context.Background(), testProviderMinimal()))
}

func TestDeleteOperation_OtherErrorIsFatal(t *testing.T) {
	t.Parallel()

	attempts := 0
	op := &DeleteOperation[*hcloud.Firewall]{
		ID:   "1",
		Kind: provider.KindSecurityGroup,
		Get: func(_ context.Context) (*hcloud.Firewall, *hcloud.Response, error) {
			return &hcloud.Firewall{ID: 1}, nil, nil
		},
		Delete: func(_ context.Context, _ *hcloud.Firewall) (*hcloud.Response, error) {
			attempts++
			return nil, errors.New("forbidden")
		},
	}

	err := op.Execute(context.Background(), testProviderMinimal())
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Contains(t, err.Error(), "forbidden")
}

func TestPageOptions(t *testing.T) {
	t.Parallel()

	lo, err := pageOptions(provider.ListOptions{Marker: "3", PageSize: 200, LabelSelector: "a=b"})
	require.NoError(t, err)
	assert.Equal(t, 3, lo.Page)
	assert.Equal(t, maxPerPage, lo.PerPage)
	assert.Equal(t, "a=b", lo.LabelSelector)

	_, err = pageOptions(provider.ListOptions{Marker: "next"})
	assert.Error(t, err)
}

func TestNextMarker(t *testing.T) {
	t.Parallel()

	assert.Empty(t, nextMarker(nil))
	assert.Empty(t, nextMarker(&hcloud.Response{}))
	assert.Equal(t, "2", nextMarker(&hcloud.Response{Meta: hcloud.Meta{Pagination: &hcloud.Pagination{Page: 1, NextPage: 2}}}))
	assert.Empty(t, nextMarker(&hcloud.Response{Meta: hcloud.Meta{Pagination: &hcloud.Pagination{Page: 2}}}))
}
