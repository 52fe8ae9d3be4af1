package predicates

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodekit/internal/config"
	"github.com/imamik/nodekit/internal/metrics"
	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/provider/fake"
	"github.com/imamik/nodekit/internal/util/retry"
)

func createInstance(t *testing.T, p *fake.Provider) string {
	t.Helper()
	id, err := p.CreateInstance(context.Background(), provider.CreateInstanceParams{
		Name: "web-aaaaa", Region: "eu-central", ImageID: "img-debian-12", FlavorID: "small",
	})
	require.NoError(t, err)
	return id
}

func newPoller(p provider.Client, recorder *metrics.Recorder) *Poller {
	return NewPoller(p, WithTimeouts(config.TestTimeouts()), WithRecorder(recorder))
}

func TestWait_NodeRunning(t *testing.T) {
	t.Parallel()
	p := fake.New(fake.WithBootPolls(3))
	recorder := metrics.NewRecorder()
	poller := newPoller(p, recorder)
	id := createInstance(t, p)

	ok, err := poller.WaitForNodeRunning(context.Background(), id)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, p.Calls("GetInstance"), 4)
	count, err := testutil.GatherAndCount(recorder.Registry(), "nodekit_poll_waits_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWait_NodeRunningFailsFastOnError(t *testing.T) {
	t.Parallel()
	p := fake.New(fake.WithBootStatus(func(provider.CreateInstanceParams) string { return fake.StatusError }))
	poller := newPoller(p, nil)
	id := createInstance(t, p)

	start := time.Now()
	ok, err := poller.Wait(context.Background(), id, NodeRunning(p, p.Metadata()), time.Minute, time.Millisecond, time.Millisecond)

	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, retry.IsFatal(err))
	assert.Contains(t, err.Error(), "ERROR")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWait_NodeRunningKeepsPollingWhileInvisible(t *testing.T) {
	t.Parallel()
	p := fake.New()
	poller := newPoller(p, nil)

	ok, err := poller.Wait(context.Background(), "missing", NodeRunning(p, p.Metadata()), 20*time.Millisecond, time.Millisecond, 2*time.Millisecond)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, p.Calls("GetInstance"), 1)
}

func TestWait_TimeoutShorterThanInterval(t *testing.T) {
	t.Parallel()
	p := fake.New()
	recorder := metrics.NewRecorder()
	poller := newPoller(p, recorder)
	id := createInstance(t, p)

	ok, err := poller.Wait(context.Background(), id, NodeRunning(p, p.Metadata()), time.Millisecond, time.Second, time.Second)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, p.Calls("GetInstance"), "the check is never evaluated")
	count, err := testutil.GatherAndCount(recorder.Registry(), "nodekit_poll_waits_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWait_TransientErrorsAreRetried(t *testing.T) {
	t.Parallel()
	p := fake.New(fake.WithBootPolls(0))
	poller := newPoller(p, nil)
	id := createInstance(t, p)
	p.FailNext("GetInstance", errors.New("connection reset"))

	ok, err := poller.WaitForNodeRunning(context.Background(), id)

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWait_ContextCancelled(t *testing.T) {
	t.Parallel()
	p := fake.New()
	poller := newPoller(p, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := poller.Wait(ctx, "missing", NodeRunning(p, p.Metadata()), time.Minute, time.Millisecond, time.Millisecond)

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}

func TestWait_NodeSuspended(t *testing.T) {
	t.Parallel()
	p := fake.New(fake.WithBootPolls(0))
	poller := newPoller(p, nil)
	id := createInstance(t, p)
	ok, err := poller.WaitForNodeRunning(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = p.StopInstance(context.Background(), id)
	require.NoError(t, err)

	ok, err = poller.WaitForNodeSuspended(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = poller.WaitForNodeSuspended(context.Background(), "gone")
	require.Error(t, err)
	assert.True(t, provider.IsNotFound(err))
}

func TestWait_NodeTerminated(t *testing.T) {
	t.Parallel()
	p := fake.New()
	poller := newPoller(p, nil)
	id := createInstance(t, p)

	_, err := p.DeleteInstance(context.Background(), id)
	require.NoError(t, err)

	ok, err := poller.WaitForNodeTerminated(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWait_ResourceAvailable(t *testing.T) {
	t.Parallel()
	p := fake.New(fake.WithBootPolls(2))
	poller := newPoller(p, nil)
	ctx := context.Background()

	netID, err := p.CreateNetwork(ctx, provider.CreateNetworkParams{Name: "n", Region: "eu-central", CIDR: "10.0.0.0/16"})
	require.NoError(t, err)

	ok, err := poller.WaitForResource(ctx, provider.KindNetwork, netID)
	require.NoError(t, err)
	assert.True(t, ok)

	subnetID, err := p.CreateSubnet(ctx, provider.CreateSubnetParams{NetworkID: netID, Name: "s", Region: "eu-central", CIDR: "10.0.1.0/24"})
	require.NoError(t, err)
	p.SetResourceStatus(provider.KindSubnet, subnetID, provider.StatusFailed)

	ok, err = poller.WaitForResource(ctx, provider.KindSubnet, subnetID)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "failed")
}

func TestWait_ResourceDeleted(t *testing.T) {
	t.Parallel()
	p := fake.New()
	poller := newPoller(p, nil)
	ctx := context.Background()

	sgID, err := p.CreateSecurityGroup(ctx, provider.CreateSecurityGroupParams{Name: "sg", Region: "eu-central"})
	require.NoError(t, err)

	ok, err := poller.Wait(ctx, sgID, ResourceDeleted(p, provider.KindSecurityGroup), 10*time.Millisecond, time.Millisecond, time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "still present")

	require.NoError(t, p.DeleteSecurityGroup(ctx, sgID))
	ok, err = poller.WaitForResourceDeleted(ctx, provider.KindSecurityGroup, sgID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWait_UnsupportedKindIsFatal(t *testing.T) {
	t.Parallel()
	p := fake.New()
	poller := newPoller(p, nil)

	ok, err := poller.WaitForResource(context.Background(), provider.KindInstance, "x")

	require.Error(t, err)
	assert.False(t, ok)
}

func TestWait_TaskDone(t *testing.T) {
	t.Parallel()
	p := fake.New()
	poller := newPoller(p, nil)
	ctx := context.Background()

	p.AddTask(provider.Task{ID: "ok", Status: provider.TaskSuccess})
	p.AddTask(provider.Task{ID: "bad", Command: "create_server", Status: provider.TaskError, Error: "quota: limit reached"})

	ok, err := poller.WaitForTask(ctx, "ok")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = poller.WaitForTask(ctx, "bad")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "quota: limit reached")
}

func TestNewPoller_DefaultsToEnvironmentTimeouts(t *testing.T) {
	t.Setenv("NODEKIT_TIMEOUT_NODE_RUNNING", "42s")
	poller := NewPoller(fake.New())
	assert.Equal(t, 42*time.Second, poller.Timeouts().NodeRunning)
}

func TestWait_PortOpen(t *testing.T) {
	t.Parallel()
	var dialed atomic.Int32
	var addr atomic.Value
	dial := func(_ context.Context, _, address string) (net.Conn, error) {
		addr.Store(address)
		if dialed.Add(1) < 3 {
			return nil, errors.New("connection refused")
		}
		client, server := net.Pipe()
		_ = server.Close()
		return client, nil
	}
	poller := NewPoller(fake.New(), WithTimeouts(config.TestTimeouts()), WithDialer(dial))

	ok, err := poller.WaitForPort(context.Background(), "203.0.113.7", 22, time.Second)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), dialed.Load())
	assert.Equal(t, "203.0.113.7:22", addr.Load())
}

func TestWait_PortNeverOpens(t *testing.T) {
	t.Parallel()
	recorder := metrics.NewRecorder()
	refuse := func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}
	poller := NewPoller(fake.New(), WithTimeouts(config.TestTimeouts()), WithRecorder(recorder), WithDialer(refuse))

	ok, err := poller.WaitForPort(context.Background(), "203.0.113.7", 22, 20*time.Millisecond)

	require.NoError(t, err)
	assert.False(t, ok)
	count, err := testutil.GatherAndCount(recorder.Registry(), "nodekit_poll_waits_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
