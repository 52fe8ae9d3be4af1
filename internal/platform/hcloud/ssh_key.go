package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodekit/internal/provider"
)

// ImportKeyPair uploads a public key as an SSH key.
func (p *Provider) ImportKeyPair(ctx context.Context, params provider.ImportKeyPairParams) (*provider.KeyPair, error) {
	key, _, err := p.client.SSHKey.Create(ctx, hcloud.SSHKeyCreateOpts{
		Name:      params.Name,
		PublicKey: params.PublicKey,
		Labels:    params.Labels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ssh key %s: %w", params.Name, err)
	}
	kp := toKeyPair(key)
	return &kp, nil
}

// GetKeyPair returns the SSH key with the given name, or nil.
func (p *Provider) GetKeyPair(ctx context.Context, name string) (*provider.KeyPair, error) {
	key, _, err := p.client.SSHKey.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get ssh key %s: %w", name, err)
	}
	if key == nil {
		return nil, nil
	}
	kp := toKeyPair(key)
	return &kp, nil
}

// ListKeyPairs returns one page of SSH keys.
func (p *Provider) ListKeyPairs(ctx context.Context, opts provider.ListOptions) (provider.Page[provider.KeyPair], error) {
	lo, err := pageOptions(opts)
	if err != nil {
		return provider.Page[provider.KeyPair]{}, err
	}
	keys, resp, err := p.client.SSHKey.List(ctx, hcloud.SSHKeyListOpts{ListOpts: lo})
	if err != nil {
		return provider.Page[provider.KeyPair]{}, fmt.Errorf("failed to list ssh keys: %w", err)
	}
	page := provider.Page[provider.KeyPair]{Next: nextMarker(resp)}
	for _, key := range keys {
		page.Items = append(page.Items, toKeyPair(key))
	}
	return page, nil
}

// DeleteKeyPair deletes the SSH key with the given name.
func (p *Provider) DeleteKeyPair(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.SSHKey]{
		ID:   name,
		Kind: provider.KindKeyPair,
		Get: func(ctx context.Context) (*hcloud.SSHKey, *hcloud.Response, error) {
			return p.client.SSHKey.GetByName(ctx, name)
		},
		Delete: p.client.SSHKey.Delete,
	}).Execute(ctx, p)
}

func toKeyPair(key *hcloud.SSHKey) provider.KeyPair {
	return provider.KeyPair{
		ID:          formatID(key.ID),
		Name:        key.Name,
		Fingerprint: key.Fingerprint,
		PublicKey:   key.PublicKey,
		Labels:      key.Labels,
	}
}
