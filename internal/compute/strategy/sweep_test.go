package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/provider/fake"
	"github.com/imamik/nodekit/internal/util/keygen"
	"github.com/imamik/nodekit/internal/util/labels"
)

func TestSweepGroup_DryRunThenDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	createGroup(t, d, "web", 1)
	stale, err := p.CreateSecurityGroup(ctx, provider.CreateSecurityGroupParams{
		Name:   "web-stale",
		Region: "eu-central",
		Labels: labels.NewLabelBuilder("web").WithOwned().Build(),
	})
	require.NoError(t, err)
	_, err = p.CreateSecurityGroup(ctx, provider.CreateSecurityGroupParams{
		Name:   "web-foreign",
		Region: "eu-central",
		Labels: labels.NewLabelBuilder("web").Build(),
	})
	require.NoError(t, err)
	key, err := keygen.GenerateRSAKeyPair(keygen.DefaultBits)
	require.NoError(t, err)
	_, err = p.ImportKeyPair(ctx, provider.ImportKeyPairParams{
		Name:      "web-leaked",
		PublicKey: string(key.PublicKey),
		Labels:    labels.NewLabelBuilder("web").WithOwned().WithOneTime().Build(),
	})
	require.NoError(t, err)
	c := NewCleaner(d)

	orphans, done, err := c.SweepGroup(ctx, "web", true)

	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, []Orphan{
		{Kind: provider.KindKeyPair, ID: "web-leaked", Name: "web-leaked"},
		{Kind: provider.KindSecurityGroup, ID: stale, Name: "web-stale"},
	}, orphans)
	assert.Empty(t, p.Deleted())

	orphans, done, err = c.SweepGroup(ctx, "web", false)

	require.NoError(t, err)
	assert.True(t, done)
	assert.Len(t, orphans, 2)
	assert.ElementsMatch(t, []provider.ResourceKind{provider.KindKeyPair, provider.KindSecurityGroup}, kinds(p.Deleted()))
	kp, err := p.GetKeyPair(ctx, "web-leaked")
	require.NoError(t, err)
	assert.Nil(t, kp)
}

func TestSweepGroup_ResourcesOfVanishedNodes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	ids := createGroup(t, d, "web", 1)
	_, err := p.DeleteInstance(ctx, ids[0])
	require.NoError(t, err)

	orphans, done, err := NewCleaner(d).SweepGroup(ctx, "web", false)

	require.NoError(t, err)
	assert.True(t, done)
	assert.Len(t, orphans, 3)
	assert.Equal(t, []provider.ResourceKind{
		provider.KindInstance, provider.KindSecurityGroup, provider.KindSubnet, provider.KindNetwork,
	}, kinds(p.Deleted()))
}

func TestSweepGroup_FailedDeletion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	_, err := p.CreateSecurityGroup(ctx, provider.CreateSecurityGroupParams{
		Name:   "web-stale",
		Region: "eu-central",
		Labels: labels.NewLabelBuilder("web").WithOwned().Build(),
	})
	require.NoError(t, err)
	p.FailAlways("DeleteSecurityGroup", errBoom)

	orphans, done, err := NewCleaner(d).SweepGroup(ctx, "web", false)

	require.NoError(t, err)
	assert.False(t, done)
	assert.Len(t, orphans, 1)
}

func TestSweepGroup_ListFailure(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	p.FailNext("ListSubnets", errBoom)

	_, _, err := NewCleaner(d).SweepGroup(context.Background(), "web", true)

	assert.ErrorIs(t, err, errBoom)
}
