package fake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/util/keygen"
	"github.com/imamik/nodekit/internal/util/labels"
)

func createParams() provider.CreateInstanceParams {
	return provider.CreateInstanceParams{
		Name:     "web-abcde",
		Region:   "eu-central",
		ImageID:  "img-ubuntu-2404",
		FlavorID: "small",
		Labels:   labels.NewLabelBuilder("web").Build(),
	}
}

func TestInstanceLifecycle(t *testing.T) {
	ctx := context.Background()
	p := New()

	id, err := p.CreateInstance(ctx, createParams())
	require.NoError(t, err)

	inst, err := p.GetInstance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusProvisioning, inst.Status)
	assert.Equal(t, "eu-central-1a", inst.Zone)

	inst, err = p.GetInstance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, inst.Status)

	_, err = p.StopInstance(ctx, id)
	require.NoError(t, err)
	inst, _ = p.GetInstance(ctx, id)
	assert.Equal(t, StatusStopped, inst.Status)

	_, err = p.DeleteInstance(ctx, id)
	require.NoError(t, err)
	inst, err = p.GetInstance(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, inst)

	_, err = p.DeleteInstance(ctx, id)
	assert.True(t, provider.IsNotFound(err))
}

func TestCreateInstance_Validation(t *testing.T) {
	ctx := context.Background()
	p := New()

	params := createParams()
	params.SecurityGroupIDs = []string{"sg-missing"}
	_, err := p.CreateInstance(ctx, params)
	assert.True(t, provider.IsNotFound(err))

	params = createParams()
	params.FlavorID = "huge"
	_, err = p.CreateInstance(ctx, params)
	assert.Error(t, err)
}

func TestBootStatus(t *testing.T) {
	ctx := context.Background()
	p := New(WithBootPolls(0), WithBootStatus(func(provider.CreateInstanceParams) string { return StatusError }))

	id, err := p.CreateInstance(ctx, createParams())
	require.NoError(t, err)
	inst, err := p.GetInstance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusError, inst.Status)
}

func TestListInstances_PaginationAndSelector(t *testing.T) {
	ctx := context.Background()
	p := New(WithPageSize(2))
	for range 3 {
		_, err := p.CreateInstance(ctx, createParams())
		require.NoError(t, err)
	}
	other := createParams()
	other.Labels = labels.NewLabelBuilder("db").Build()
	_, err := p.CreateInstance(ctx, other)
	require.NoError(t, err)

	opts := provider.ListOptions{LabelSelector: labels.ForGroup("web").String()}
	page, err := p.ListInstances(ctx, opts)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	require.NotEmpty(t, page.Next)

	opts.Marker = page.Next
	page, err = p.ListInstances(ctx, opts)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Empty(t, page.Next)
}

func TestListInstances_ZoneScoped(t *testing.T) {
	ctx := context.Background()
	p := New(WithZoneScoped(true))

	_, err := p.ListInstances(ctx, provider.ListOptions{Region: "eu-central"})
	assert.Error(t, err)

	_, err = p.ListInstances(ctx, provider.ListOptions{Region: "eu-central", Zone: "eu-central-1a"})
	assert.NoError(t, err)
	assert.True(t, p.Metadata().ZoneScoped)
}

func TestFailureInjection(t *testing.T) {
	ctx := context.Background()
	p := New()
	boom := errors.New("boom")

	p.FailNext("ListInstances:us-east", boom)
	_, err := p.ListInstances(ctx, provider.ListOptions{Region: "eu-central"})
	require.NoError(t, err)
	_, err = p.ListInstances(ctx, provider.ListOptions{Region: "us-east"})
	require.ErrorIs(t, err, boom)
	_, err = p.ListInstances(ctx, provider.ListOptions{Region: "us-east"})
	require.NoError(t, err)

	p.FailAlways("ListRegions", boom)
	for range 2 {
		_, err = p.ListRegions(ctx)
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, 3, p.Calls("ListInstances"))
}

func TestNetworkResources(t *testing.T) {
	ctx := context.Background()
	p := New()

	netID, err := p.CreateNetwork(ctx, provider.CreateNetworkParams{Name: "n", Region: "eu-central", CIDR: "10.0.0.0/16"})
	require.NoError(t, err)
	n, err := p.GetNetwork(ctx, netID)
	require.NoError(t, err)
	assert.Equal(t, provider.StatusPending, n.Status)
	n, _ = p.GetNetwork(ctx, netID)
	assert.Equal(t, provider.StatusAvailable, n.Status)

	subID, err := p.CreateSubnet(ctx, provider.CreateSubnetParams{NetworkID: netID, Region: "eu-central", CIDR: "10.0.1.0/24"})
	require.NoError(t, err)
	sgID, err := p.CreateSecurityGroup(ctx, provider.CreateSecurityGroupParams{Name: "sg", Region: "eu-central", NetworkID: netID})
	require.NoError(t, err)

	params := createParams()
	params.NetworkID, params.SubnetID, params.SecurityGroupIDs = netID, subID, []string{sgID}
	instID, err := p.CreateInstance(ctx, params)
	require.NoError(t, err)
	inst, _ := p.GetInstance(ctx, instID)
	assert.Len(t, inst.NICs, 2)
	assert.Len(t, inst.PrivateIPs, 1)

	assert.Error(t, p.DeleteSecurityGroup(ctx, sgID), "group in use")
	assert.Error(t, p.DeleteNetwork(ctx, netID), "network has subnets")

	_, err = p.DeleteInstance(ctx, instID)
	require.NoError(t, err)
	require.NoError(t, p.DeleteSecurityGroup(ctx, sgID))
	require.NoError(t, p.DeleteSubnet(ctx, subID))
	require.NoError(t, p.DeleteNetwork(ctx, netID))
	assert.True(t, provider.IsNotFound(p.DeleteNetwork(ctx, netID)))

	assert.Equal(t, []Resource{
		{provider.KindInstance, instID},
		{provider.KindSecurityGroup, sgID},
		{provider.KindSubnet, subID},
		{provider.KindNetwork, netID},
	}, p.Deleted())
}

func TestKeyPairs(t *testing.T) {
	ctx := context.Background()
	p := New()
	kp, err := keygen.GenerateRSAKeyPair(keygen.DefaultBits)
	require.NoError(t, err)

	imported, err := p.ImportKeyPair(ctx, provider.ImportKeyPairParams{Name: "k", PublicKey: string(kp.PublicKey)})
	require.NoError(t, err)
	assert.Equal(t, kp.Fingerprint, imported.Fingerprint)

	_, err = p.ImportKeyPair(ctx, provider.ImportKeyPairParams{Name: "k", PublicKey: string(kp.PublicKey)})
	assert.Error(t, err)
	_, err = p.ImportKeyPair(ctx, provider.ImportKeyPairParams{Name: "bad", PublicKey: "nope"})
	assert.Error(t, err)

	got, err := p.GetKeyPair(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NoError(t, p.DeleteKeyPair(ctx, "k"))
	got, err = p.GetKeyPair(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTasksRecorded(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	p := New(WithClock(func() time.Time { return now }))

	id, err := p.CreateInstance(ctx, createParams())
	require.NoError(t, err)
	_, _ = p.GetInstance(ctx, id)
	_, _ = p.GetInstance(ctx, id)
	taskID, err := p.RebootInstance(ctx, id)
	require.NoError(t, err)

	page, err := p.ListTasks(ctx, id, provider.ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, provider.TaskKindDeploy, page.Items[0].Kind)
	assert.Equal(t, provider.TaskKindReboot, page.Items[1].Kind)

	task, err := p.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, provider.TaskSuccess, task.Status)
	assert.Equal(t, now, task.Started)
}
