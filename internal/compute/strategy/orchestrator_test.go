package strategy

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodekit/internal/compute/predicates"
	"github.com/imamik/nodekit/internal/config"
	"github.com/imamik/nodekit/internal/events"
	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/provider/fake"
	"github.com/imamik/nodekit/internal/util/keygen"
	"github.com/imamik/nodekit/internal/util/labels"
	"github.com/imamik/nodekit/pkg/compute"
)

var errBoom = errors.New("boom")

func TestCreateNodesInGroup_AutoCreatesPrerequisites(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, obs, recorder := newTestDeps(p)
	tmpl := autoTemplate()
	tmpl.Options.AutoCreateKeyPair = true
	results := NewBatchResult()

	err := NewOrchestrator(d).CreateNodesInGroup(context.Background(), "web", 2, tmpl, results)

	require.NoError(t, err)
	res := results.CreateResult()
	assert.Empty(t, res.Bad)
	require.Len(t, res.Good, 2)
	for id, n := range res.Good {
		assert.Equal(t, id, n.ID)
		assert.Equal(t, "web", n.Group)
		assert.Equal(t, compute.NodeRunning, n.Status)
		require.NotNil(t, n.Credentials)
		assert.Equal(t, "ubuntu", n.Credentials.User)
		assert.True(t, n.Credentials.HasPrivateKey())
		assert.NotEmpty(t, n.PrivateAddresses)
	}

	assert.Equal(t, []provider.ResourceKind{
		provider.KindNetwork, provider.KindSubnet, provider.KindSecurityGroup, provider.KindKeyPair,
		provider.KindInstance, provider.KindInstance,
	}, kinds(p.Created()))
	assert.Equal(t, []provider.ResourceKind{provider.KindKeyPair}, kinds(p.Deleted()))

	types := obs.types()
	require.NotEmpty(t, types)
	assert.Equal(t, events.EventBatchStarted, types[0])
	assert.Equal(t, events.EventBatchCompleted, types[len(types)-1])
	assert.Equal(t, 2, obs.count(events.EventNodeRunning))
	assert.Equal(t, 4, obs.count(events.EventResourceCreated))

	count, err := testutil.GatherAndCount(recorder.Registry(), "nodekit_compute_nodes_created_total")
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestCreateNodesInGroup_CredentialsAreCopiedPerNode(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	results := NewBatchResult()

	require.NoError(t, NewOrchestrator(d).CreateNodesInGroup(context.Background(), "web", 2, baseTemplate(), results))

	var creds []*compute.LoginCredentials
	for _, n := range results.Good() {
		creds = append(creds, n.Credentials)
	}
	require.Len(t, creds, 2)
	assert.NotSame(t, creds[0], creds[1])
	assert.Equal(t, *creds[0], *creds[1])
}

func TestCreateNodesInGroup_LoginUserFallbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		image    string
		user     string
		password string
		wantUser string
		wantSudo bool
	}{
		{name: "template user wins", image: "img-ubuntu-2404", user: "ops", password: "secret", wantUser: "ops", wantSudo: true},
		{name: "image default user", image: "img-ubuntu-2404", wantUser: "ubuntu"},
		{name: "provider default user", image: "img-debian-12", password: "secret", wantUser: "root"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := fake.New()
			d, _, _ := newTestDeps(p)
			tmpl := baseTemplate()
			tmpl.ImageID = tt.image
			tmpl.Options.LoginUser = tt.user
			tmpl.Options.Password = tt.password
			results := NewBatchResult()

			require.NoError(t, NewOrchestrator(d).CreateNodesInGroup(context.Background(), "web", 1, tmpl, results))

			for _, n := range results.Good() {
				assert.Equal(t, tt.wantUser, n.Credentials.User)
				assert.Equal(t, tt.wantSudo, n.Credentials.AuthenticateSudo)
			}
		})
	}
}

func TestCreateNodesInGroup_RollsBackInReverseOrder(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, obs, _ := newTestDeps(p)
	p.FailNext("CreateSecurityGroup", errBoom)
	results := NewBatchResult()

	err := NewOrchestrator(d).CreateNodesInGroup(context.Background(), "web", 3, autoTemplate(), results)

	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	created := p.Created()
	require.Len(t, created, 2)
	assert.Equal(t, []fake.Resource{created[1], created[0]}, p.Deleted())
	assert.Empty(t, results.Good())
	assert.Empty(t, results.Bad())
	assert.Equal(t, 0, p.Calls("CreateInstance"))
	assert.Equal(t, 2, obs.count(events.EventResourceDeleted))
}

func TestCreateNodesInGroup_RollbackLeavesReusedResources(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	o := NewOrchestrator(d)
	require.NoError(t, o.CreateNodesInGroup(context.Background(), "web", 1, autoTemplate(), NewBatchResult()))

	tmpl := autoTemplate()
	tmpl.Options.KeyPairName = "missing"
	err := o.CreateNodesInGroup(context.Background(), "web", 1, tmpl, NewBatchResult())

	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrNotFound)
	assert.Empty(t, p.Deleted())
}

func TestCreateNodesInGroup_CannotDetermineNetwork(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	tmpl := baseTemplate()
	tmpl.Options.SecurityGroupIDs = []string{"sg-a", "sg-b"}

	err := NewOrchestrator(d).CreateNodesInGroup(context.Background(), "web", 1, tmpl, NewBatchResult())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCannotDetermineNetwork)
	assert.True(t, IsStateError(err))
	assert.Contains(t, err.Error(), "sg-a, sg-b")
	assert.Empty(t, p.Created())
}

func TestCreateNodesInGroup_SecurityGroupsRevealNetwork(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	netID, err := p.CreateNetwork(ctx, provider.CreateNetworkParams{Name: "shared", Region: "eu-central", CIDR: "10.1.0.0/16"})
	require.NoError(t, err)
	sgID, err := p.CreateSecurityGroup(ctx, provider.CreateSecurityGroupParams{Name: "shared", Region: "eu-central", NetworkID: netID})
	require.NoError(t, err)
	tmpl := baseTemplate()
	tmpl.Options.SecurityGroupIDs = []string{sgID}
	results := NewBatchResult()

	require.NoError(t, NewOrchestrator(d).CreateNodesInGroup(ctx, "web", 1, tmpl, results))

	require.Len(t, results.Good(), 1)
	for id := range results.Good() {
		inst, err := p.GetInstance(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []string{sgID}, inst.SecurityGroupIDs)
		assert.Contains(t, RefsOf(*inst).Networks.UnsortedList(), netID)
	}
}

func TestCreateNodesInGroup_SecurityGroupsSpanNetworks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	var ids []string
	for _, name := range []string{"a", "b"} {
		netID, err := p.CreateNetwork(ctx, provider.CreateNetworkParams{Name: name, Region: "eu-central"})
		require.NoError(t, err)
		sgID, err := p.CreateSecurityGroup(ctx, provider.CreateSecurityGroupParams{Name: name, Region: "eu-central", NetworkID: netID})
		require.NoError(t, err)
		ids = append(ids, sgID)
	}
	tmpl := baseTemplate()
	tmpl.Options.SecurityGroupIDs = ids

	err := NewOrchestrator(d).CreateNodesInGroup(ctx, "web", 1, tmpl, NewBatchResult())

	require.Error(t, err)
	assert.True(t, IsStateError(err))
	assert.Contains(t, err.Error(), "span networks")
}

func TestCreateNodesInGroup_SubnetOfOtherNetwork(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	n1, err := p.CreateNetwork(ctx, provider.CreateNetworkParams{Name: "one", Region: "eu-central"})
	require.NoError(t, err)
	n2, err := p.CreateNetwork(ctx, provider.CreateNetworkParams{Name: "two", Region: "eu-central"})
	require.NoError(t, err)
	subnet, err := p.CreateSubnet(ctx, provider.CreateSubnetParams{NetworkID: n2, Name: "two-a", Region: "eu-central"})
	require.NoError(t, err)
	tmpl := baseTemplate()
	tmpl.Options.NetworkID = n1
	tmpl.Options.SubnetID = subnet

	err = NewOrchestrator(d).CreateNodesInGroup(ctx, "web", 1, tmpl, NewBatchResult())

	require.Error(t, err)
	assert.True(t, IsStateError(err))
	assert.Equal(t, 0, p.Calls("CreateInstance"))
}

func TestCreateNodesInGroup_SubnetAdoptsItsNetwork(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	netID, err := p.CreateNetwork(ctx, provider.CreateNetworkParams{Name: "one", Region: "eu-central"})
	require.NoError(t, err)
	subnet, err := p.CreateSubnet(ctx, provider.CreateSubnetParams{NetworkID: netID, Name: "one-a", Region: "eu-central"})
	require.NoError(t, err)
	tmpl := baseTemplate()
	tmpl.Options.SubnetID = subnet
	results := NewBatchResult()

	require.NoError(t, NewOrchestrator(d).CreateNodesInGroup(ctx, "web", 1, tmpl, results))

	for id := range results.Good() {
		inst, err := p.GetInstance(ctx, id)
		require.NoError(t, err)
		refs := RefsOf(*inst)
		assert.True(t, refs.Networks.Has(netID))
		assert.True(t, refs.Subnets.Has(subnet))
	}
}

func TestCreateNodesInGroup_ImportedPublicKeyIsOneTime(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	kp, err := keygen.GenerateRSAKeyPair(keygen.DefaultBits)
	require.NoError(t, err)
	tmpl := baseTemplate()
	tmpl.Options.PublicKey = string(kp.PublicKey)
	tmpl.Options.PrivateKey = string(kp.PrivateKey)
	results := NewBatchResult()

	require.NoError(t, NewOrchestrator(d).CreateNodesInGroup(ctx, "web", 1, tmpl, results))

	require.Len(t, results.Good(), 1)
	for id, n := range results.Good() {
		assert.Equal(t, string(kp.PrivateKey), n.Credentials.PrivateKey)
		inst, err := p.GetInstance(ctx, id)
		require.NoError(t, err)
		assert.NotEmpty(t, inst.KeyPairName)
		gone, err := p.GetKeyPair(ctx, inst.KeyPairName)
		require.NoError(t, err)
		assert.Nil(t, gone)
	}
	assert.Equal(t, 1, countKind(p.Deleted(), provider.KindKeyPair))
}

func TestCreateNodesInGroup_ExistingKeyPairIsKept(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	kp, err := keygen.GenerateRSAKeyPair(keygen.DefaultBits)
	require.NoError(t, err)
	_, err = p.ImportKeyPair(ctx, provider.ImportKeyPairParams{Name: "ops", PublicKey: string(kp.PublicKey)})
	require.NoError(t, err)
	tmpl := baseTemplate()
	tmpl.Options.KeyPairName = "ops"
	results := NewBatchResult()

	require.NoError(t, NewOrchestrator(d).CreateNodesInGroup(ctx, "web", 2, tmpl, results))

	assert.Len(t, results.Good(), 2)
	assert.Empty(t, p.Deleted())
	stillThere, err := p.GetKeyPair(ctx, "ops")
	require.NoError(t, err)
	assert.NotNil(t, stillThere)
}

func TestCreateNodesInGroup_PartialFailure(t *testing.T) {
	t.Parallel()
	var n atomic.Int32
	p := fake.New(fake.WithBootStatus(func(provider.CreateInstanceParams) string {
		if n.Add(1) == 1 {
			return fake.StatusError
		}
		return fake.StatusRunning
	}))
	d, obs, _ := newTestDeps(p)
	results := NewBatchResult()

	err := NewOrchestrator(d).CreateNodesInGroup(context.Background(), "web", 3, autoTemplate(), results)

	require.NoError(t, err)
	res := results.CreateResult()
	assert.Len(t, res.Good, 2)
	require.Len(t, res.Bad, 1)
	for name, f := range res.Bad {
		assert.Equal(t, name, f.Name)
		require.NotNil(t, f.Node)
		assert.Equal(t, compute.NodeError, f.Node.Status)
		assert.Error(t, f.Err)
	}
	assert.Equal(t, []provider.ResourceKind{provider.KindInstance}, kinds(p.Deleted()))
	assert.Equal(t, 1, obs.count(events.EventNodeFailed))
}

func TestCreateNodesInGroup_CreateInstanceFailure(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	p.FailNext("CreateInstance", errBoom)
	results := NewBatchResult()

	require.NoError(t, NewOrchestrator(d).CreateNodesInGroup(context.Background(), "web", 2, baseTemplate(), results))

	assert.Len(t, results.Good(), 1)
	require.Len(t, results.Bad(), 1)
	for _, f := range results.Bad() {
		assert.Nil(t, f.Node)
		assert.ErrorIs(t, f, errBoom)
	}
}

func TestCreateNodesInGroup_AllFailedReleasesSharedResources(t *testing.T) {
	t.Parallel()
	p := fake.New(fake.WithBootStatus(func(provider.CreateInstanceParams) string { return fake.StatusError }))
	d, obs, _ := newTestDeps(p)
	results := NewBatchResult()

	require.NoError(t, NewOrchestrator(d).CreateNodesInGroup(context.Background(), "web", 2, autoTemplate(), results))

	assert.Empty(t, results.Good())
	assert.Len(t, results.Bad(), 2)
	deleted := kinds(p.Deleted())
	require.Len(t, deleted, 5)
	assert.Equal(t, []provider.ResourceKind{provider.KindSecurityGroup, provider.KindSubnet, provider.KindNetwork}, deleted[2:])

	completed := obs.events[len(obs.events)-1]
	assert.Equal(t, events.EventBatchCompleted, completed.Type)
	assert.NotEmpty(t, completed.Error)
}

func TestCreateNodesInGroup_ReusesOwnedResources(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, obs, _ := newTestDeps(p)
	o := NewOrchestrator(d)

	require.NoError(t, o.CreateNodesInGroup(context.Background(), "web", 1, autoTemplate(), NewBatchResult()))
	require.NoError(t, o.CreateNodesInGroup(context.Background(), "web", 1, autoTemplate(), NewBatchResult()))

	created := p.Created()
	assert.Equal(t, 1, countKind(created, provider.KindNetwork))
	assert.Equal(t, 1, countKind(created, provider.KindSubnet))
	assert.Equal(t, 1, countKind(created, provider.KindSecurityGroup))
	assert.Equal(t, 2, countKind(created, provider.KindInstance))
	assert.Equal(t, 3, obs.count(events.EventResourceReused))
}

func TestCreateNodesInGroup_WaitsForPendingReusedResources(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := fake.New()
	d, obs, _ := newTestDeps(p)
	owned := labels.NewLabelBuilder("web").WithOwned().Build()
	netID, err := p.CreateNetwork(ctx, provider.CreateNetworkParams{Name: "web-net", Region: "eu-central", CIDR: DefaultNetworkCIDR, Labels: owned})
	require.NoError(t, err)
	subnetID, err := p.CreateSubnet(ctx, provider.CreateSubnetParams{NetworkID: netID, Name: "web-subnet", Region: "eu-central", CIDR: DefaultSubnetCIDR, Labels: owned})
	require.NoError(t, err)
	sgID, err := p.CreateSecurityGroup(ctx, provider.CreateSecurityGroupParams{Name: "web-sg", Region: "eu-central", NetworkID: netID, Labels: owned})
	require.NoError(t, err)

	require.NoError(t, NewOrchestrator(d).CreateNodesInGroup(ctx, "web", 1, autoTemplate(), NewBatchResult()))

	assert.Equal(t, 3, obs.count(events.EventResourceReused))
	assert.GreaterOrEqual(t, p.Calls("GetNetwork"), 2)
	assert.GreaterOrEqual(t, p.Calls("GetSubnet"), 2)
	assert.GreaterOrEqual(t, p.Calls("GetSecurityGroup"), 2)
	n, err := p.GetNetwork(ctx, netID)
	require.NoError(t, err)
	assert.Equal(t, provider.StatusAvailable, n.Status)
	s, err := p.GetSubnet(ctx, subnetID)
	require.NoError(t, err)
	assert.Equal(t, provider.StatusAvailable, s.Status)
	g, err := p.GetSecurityGroup(ctx, sgID)
	require.NoError(t, err)
	assert.Equal(t, provider.StatusAvailable, g.Status)
}

func TestCreateNodesInGroup_GroupsDoNotShareResources(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	o := NewOrchestrator(d)

	require.NoError(t, o.CreateNodesInGroup(context.Background(), "web", 1, autoTemplate(), NewBatchResult()))
	require.NoError(t, o.CreateNodesInGroup(context.Background(), "db", 1, autoTemplate(), NewBatchResult()))

	assert.Equal(t, 2, countKind(p.Created(), provider.KindNetwork))
}

func TestCreateNodesInGroup_ZoneLocation(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	tmpl := baseTemplate()
	tmpl.LocationID = "eu-central-1b"
	results := NewBatchResult()

	require.NoError(t, NewOrchestrator(d).CreateNodesInGroup(context.Background(), "web", 1, tmpl, results))

	for _, n := range results.Good() {
		require.NotNil(t, n.Location)
		assert.Equal(t, "eu-central-1b", n.Location.ID)
		assert.Equal(t, "eu-central", n.Location.Region().ID)
	}
}

func TestCreateNodesInGroup_LabelsCarryMetadataAndTags(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	tmpl := baseTemplate()
	tmpl.Options.Tags = []string{"frontend"}
	tmpl.Options.UserMetadata = map[string]string{"env": "prod", labels.KeyGroup: "hijack"}
	results := NewBatchResult()

	require.NoError(t, NewOrchestrator(d).CreateNodesInGroup(ctx, "web", 1, tmpl, results))

	for id, n := range results.Good() {
		assert.Equal(t, "web", n.Group)
		assert.Equal(t, "prod", n.UserMetadata["env"])
		assert.Contains(t, n.Tags, "frontend")
		inst, err := p.GetInstance(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "web", inst.Labels[labels.KeyGroup])
		assert.NotEmpty(t, inst.Labels[labels.KeyAttempt])
	}
}

func TestCreateNodesInGroup_InvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		group string
		count int
		tmpl  func() compute.Template
		want  string
	}{
		{name: "bad group", group: "Web_1", count: 1, tmpl: baseTemplate, want: "group name"},
		{name: "zero count", group: "web", count: 0, tmpl: baseTemplate, want: "must be positive"},
		{name: "no image", group: "web", count: 1, tmpl: func() compute.Template {
			tmpl := baseTemplate()
			tmpl.ImageID = ""
			return tmpl
		}, want: "image"},
		{name: "unknown location", group: "web", count: 1, tmpl: func() compute.Template {
			tmpl := baseTemplate()
			tmpl.LocationID = "mars-1"
			return tmpl
		}, want: "unknown location"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := fake.New()
			d, _, _ := newTestDeps(p)

			err := NewOrchestrator(d).CreateNodesInGroup(context.Background(), tt.group, tt.count, tt.tmpl(), NewBatchResult())

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, p.Created())
		})
	}
}

func TestBatchResult_SharedAcrossBatches(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	o := NewOrchestrator(d)
	results := NewBatchResult()

	require.NoError(t, o.CreateNodesInGroup(context.Background(), "web", 2, baseTemplate(), results))
	require.NoError(t, o.CreateNodesInGroup(context.Background(), "db", 1, baseTemplate(), results))

	assert.Len(t, results.Good(), 3)
}

func TestCreateNodesInGroup_BlockOnPort(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	var (
		mu     sync.Mutex
		probed []string
	)
	d.Poller = predicates.NewPoller(p, predicates.WithTimeouts(config.TestTimeouts()),
		predicates.WithDialer(func(_ context.Context, _, address string) (net.Conn, error) {
			mu.Lock()
			probed = append(probed, address)
			mu.Unlock()
			client, server := net.Pipe()
			_ = server.Close()
			return client, nil
		}))
	tmpl := baseTemplate()
	tmpl.Options.BlockOnPort = 2222
	results := NewBatchResult()

	require.NoError(t, NewOrchestrator(d).CreateNodesInGroup(context.Background(), "web", 2, tmpl, results))

	require.Len(t, results.Good(), 2)
	var want []string
	for _, n := range results.Good() {
		require.NotEmpty(t, n.PublicAddresses)
		want = append(want, net.JoinHostPort(n.PublicAddresses[0], "2222"))
	}
	assert.ElementsMatch(t, want, probed)
}

func TestCreateNodesInGroup_BlockOnPortTimeout(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	d.Poller = predicates.NewPoller(p, predicates.WithTimeouts(config.TestTimeouts()),
		predicates.WithDialer(func(context.Context, string, string) (net.Conn, error) {
			return nil, errors.New("connection refused")
		}))
	tmpl := baseTemplate()
	tmpl.Options.BlockOnPort = 22
	tmpl.Options.BlockOnPortTimeout = 20 * time.Millisecond
	results := NewBatchResult()

	require.NoError(t, NewOrchestrator(d).CreateNodesInGroup(context.Background(), "web", 1, tmpl, results))

	assert.Empty(t, results.Good())
	require.Len(t, results.Bad(), 1)
	for _, f := range results.Bad() {
		assert.True(t, IsStateError(f.Err))
		assert.Contains(t, f.Err.Error(), "wait for port 22")
	}
	assert.Equal(t, []provider.ResourceKind{provider.KindInstance}, kinds(p.Deleted()))
}

func TestCreateNodesInGroup_InvalidBlockOnPort(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	tmpl := baseTemplate()
	tmpl.Options.BlockOnPort = 70000

	err := NewOrchestrator(d).CreateNodesInGroup(context.Background(), "web", 1, tmpl, NewBatchResult())

	require.Error(t, err)
	assert.Empty(t, p.Created())
}

func TestCreateNodesInGroup_CancelledDuringPrerequisitesRollsBack(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, obs, _ := newTestDeps(p)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Client = &ctxClient{Provider: p, afterCreateNetwork: cancel}
	tmpl := autoTemplate()
	tmpl.Options.AutoCreateKeyPair = true

	err := NewOrchestrator(d).CreateNodesInGroup(ctx, "web", 2, tmpl, NewBatchResult())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []provider.ResourceKind{provider.KindNetwork}, kinds(p.Created()))
	assert.Equal(t, p.Created(), p.Deleted())
	assert.Zero(t, obs.count(events.EventResourceCleanupFailed))
}

func TestCreateNodesInGroup_CancelledWhileNodesBootRollsBack(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, _, _ := newTestDeps(p)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Client = &ctxClient{Provider: p, afterCreateInstance: cancel}
	tmpl := autoTemplate()
	tmpl.Options.AutoCreateKeyPair = true
	results := NewBatchResult()

	require.NoError(t, NewOrchestrator(d).CreateNodesInGroup(ctx, "web", 1, tmpl, results))

	assert.Empty(t, results.Good())
	require.Len(t, results.Bad(), 1)
	for _, f := range results.Bad() {
		assert.ErrorIs(t, f.Err, context.Canceled)
	}
	assert.Equal(t, []provider.ResourceKind{
		provider.KindInstance, provider.KindKeyPair,
		provider.KindSecurityGroup, provider.KindSubnet, provider.KindNetwork,
	}, kinds(p.Deleted()))
}

func TestCreateNodesInGroup_RollbackToleratesAlreadyDeleted(t *testing.T) {
	t.Parallel()
	p := fake.New()
	d, obs, recorder := newTestDeps(p)
	p.FailNext("CreateSecurityGroup", errBoom)
	p.FailNext("DeleteNetwork", provider.NotFound(provider.KindNetwork, "gone"))

	err := NewOrchestrator(d).CreateNodesInGroup(context.Background(), "web", 1, autoTemplate(), NewBatchResult())

	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	var cleanupErr *CleanupError
	assert.False(t, errors.As(err, &cleanupErr))
	assert.Equal(t, []provider.ResourceKind{provider.KindSubnet}, kinds(p.Deleted()))
	assert.Equal(t, 1, p.Calls("DeleteNetwork"))
	assert.Equal(t, 2, obs.count(events.EventResourceDeleted))
	assert.Zero(t, obs.count(events.EventResourceCleanupFailed))
	cleanups, err := testutil.GatherAndCount(recorder.Registry(), "nodekit_cleanup_resources_total")
	require.NoError(t, err)
	assert.Positive(t, cleanups)
}
