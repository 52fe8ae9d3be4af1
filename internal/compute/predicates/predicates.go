// Package predicates waits for nodes, secondary resources and tasks to reach
// a target state.
//
// A Target is a single status check. Poller.Wait evaluates it with
// exponential backoff and folds the three outcomes into (bool, error):
// reached (true, nil), timed out (false, nil) and failed (false, err).
// A check returns a retry.Fatal error for statuses that can never lead to
// the target, which stops polling at once.
package predicates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/nodekit/internal/config"
	"github.com/imamik/nodekit/internal/metrics"
	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/util/netutil"
	"github.com/imamik/nodekit/internal/util/retry"
	"github.com/imamik/nodekit/pkg/compute"
)

// Check reports whether the resource with the given id reached the target.
type Check func(ctx context.Context, id string) (bool, error)

// Target is a named status check.
type Target struct {
	Name  string
	Check Check
}

// NodeRunning waits for an instance to run. A missing instance may not be
// visible yet and keeps the poll going; ERROR and TERMINATED are final.
func NodeRunning(c provider.InstanceClient, meta provider.Metadata) Target {
	return Target{Name: "node_running", Check: func(ctx context.Context, id string) (bool, error) {
		inst, err := c.GetInstance(ctx, id)
		if err != nil || inst == nil {
			return false, err
		}
		switch status := nodeStatus(meta, inst.Status); status {
		case compute.NodeRunning:
			return true, nil
		case compute.NodeError, compute.NodeTerminated:
			return false, retry.Fatal(fmt.Errorf("instance %s is %s (%s)", id, status, inst.Status))
		default:
			return false, nil
		}
	}}
}

// NodeSuspended waits for an instance to stop.
func NodeSuspended(c provider.InstanceClient, meta provider.Metadata) Target {
	return Target{Name: "node_suspended", Check: func(ctx context.Context, id string) (bool, error) {
		inst, err := c.GetInstance(ctx, id)
		if err != nil {
			return false, err
		}
		if inst == nil {
			return false, retry.Fatal(provider.NotFound(provider.KindInstance, id))
		}
		switch status := nodeStatus(meta, inst.Status); status {
		case compute.NodeSuspended:
			return true, nil
		case compute.NodeError, compute.NodeTerminated:
			return false, retry.Fatal(fmt.Errorf("instance %s is %s (%s)", id, status, inst.Status))
		default:
			return false, nil
		}
	}}
}

// NodeTerminated waits for an instance to disappear. An instance that is
// gone counts as terminated.
func NodeTerminated(c provider.InstanceClient, meta provider.Metadata) Target {
	return Target{Name: "node_terminated", Check: func(ctx context.Context, id string) (bool, error) {
		inst, err := c.GetInstance(ctx, id)
		if err != nil {
			if provider.IsNotFound(err) {
				return true, nil
			}
			return false, err
		}
		return inst == nil || nodeStatus(meta, inst.Status) == compute.NodeTerminated, nil
	}}
}

// ResourceAvailable waits for a network, subnet, security group or key pair
// to become usable. Key pairs have no status and are usable once visible.
func ResourceAvailable(c provider.Client, kind provider.ResourceKind) Target {
	return Target{Name: "available_" + targetSuffix(kind), Check: func(ctx context.Context, id string) (bool, error) {
		status, found, err := resourceStatus(ctx, c, kind, id)
		if err != nil || !found {
			return false, err
		}
		switch status {
		case "", provider.StatusAvailable:
			return true, nil
		case provider.StatusFailed:
			return false, retry.Fatal(fmt.Errorf("%s %s failed", kind, id))
		default:
			return false, nil
		}
	}}
}

// ResourceDeleted waits for a secondary resource to disappear.
func ResourceDeleted(c provider.Client, kind provider.ResourceKind) Target {
	return Target{Name: "deleted_" + targetSuffix(kind), Check: func(ctx context.Context, id string) (bool, error) {
		_, found, err := resourceStatus(ctx, c, kind, id)
		if err != nil {
			if provider.IsNotFound(err) {
				return true, nil
			}
			return false, err
		}
		return !found, nil
	}}
}

// TaskDone waits for a provider task to finish successfully.
func TaskDone(c provider.TaskClient) Target {
	return Target{Name: "task_done", Check: func(ctx context.Context, id string) (bool, error) {
		task, err := c.GetTask(ctx, id)
		if err != nil || task == nil {
			return false, err
		}
		switch task.Status {
		case provider.TaskSuccess:
			return true, nil
		case provider.TaskError:
			msg := task.Error
			if msg == "" {
				msg = "no details"
			}
			return false, retry.Fatal(fmt.Errorf("task %s (%s) failed: %s", id, task.Command, msg))
		default:
			return false, nil
		}
	}}
}

// PortOpen waits for a TCP address (host:port) to accept connections.
func PortOpen(dial netutil.DialFunc) Target {
	return Target{Name: "port_open", Check: func(ctx context.Context, address string) (bool, error) {
		return netutil.PortOpen(ctx, dial, address), nil
	}}
}

func resourceStatus(ctx context.Context, c provider.Client, kind provider.ResourceKind, id string) (string, bool, error) {
	switch kind {
	case provider.KindNetwork:
		n, err := c.GetNetwork(ctx, id)
		if err != nil || n == nil {
			return "", false, err
		}
		return n.Status, true, nil
	case provider.KindSubnet:
		s, err := c.GetSubnet(ctx, id)
		if err != nil || s == nil {
			return "", false, err
		}
		return s.Status, true, nil
	case provider.KindSecurityGroup:
		sg, err := c.GetSecurityGroup(ctx, id)
		if err != nil || sg == nil {
			return "", false, err
		}
		return sg.Status, true, nil
	case provider.KindKeyPair:
		kp, err := c.GetKeyPair(ctx, id)
		if err != nil || kp == nil {
			return "", false, err
		}
		return "", true, nil
	default:
		return "", false, retry.Fatal(fmt.Errorf("cannot poll resources of kind %q", kind))
	}
}

func targetSuffix(kind provider.ResourceKind) string {
	switch kind {
	case provider.KindSecurityGroup:
		return "security_group"
	case provider.KindKeyPair:
		return "key_pair"
	default:
		return string(kind)
	}
}

func nodeStatus(meta provider.Metadata, vendor string) compute.NodeStatus {
	if s, ok := meta.NodeStatus[vendor]; ok {
		return s
	}
	return compute.NodeUnrecognized
}

// Poller waits for targets of one provider.
type Poller struct {
	client   provider.Client
	meta     provider.Metadata
	timeouts *config.Timeouts
	recorder *metrics.Recorder
	dial     netutil.DialFunc
	log      logr.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithTimeouts replaces the timeouts loaded from the environment.
func WithTimeouts(t *config.Timeouts) Option {
	return func(p *Poller) { p.timeouts = t }
}

// WithRecorder records every wait.
func WithRecorder(r *metrics.Recorder) Option {
	return func(p *Poller) { p.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(p *Poller) { p.log = log }
}

// WithDialer replaces the dialer of port probes.
func WithDialer(dial netutil.DialFunc) Option {
	return func(p *Poller) { p.dial = dial }
}

// NewPoller returns a Poller for client.
func NewPoller(client provider.Client, opts ...Option) *Poller {
	p := &Poller{client: client, meta: client.Metadata(), log: logr.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	if p.timeouts == nil {
		p.timeouts = config.LoadTimeouts()
	}
	p.log = p.log.WithName("poller")
	return p
}

// Timeouts returns the timeouts the convenience waits use.
func (p *Poller) Timeouts() *config.Timeouts {
	return p.timeouts
}

// Wait polls target for id. It returns true once the target is reached,
// false with a nil error when timeout elapses, and the error when the check
// failed fatally or ctx was cancelled.
func (p *Poller) Wait(ctx context.Context, id string, target Target, timeout, initial, maxInterval time.Duration) (bool, error) {
	start := time.Now()
	err := retry.Poll(ctx, func(ctx context.Context) (bool, error) {
		return target.Check(ctx, id)
	},
		retry.WithTimeout(timeout),
		retry.WithInitialDelay(initial),
		retry.WithMaxDelay(maxInterval),
	)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		p.recorder.ObservePoll(target.Name, metrics.ResultSuccess, elapsed)
		return true, nil
	case errors.Is(err, retry.ErrPollTimeout):
		p.recorder.ObservePoll(target.Name, metrics.ResultTimeout, elapsed)
		p.log.V(1).Info("Timed out", "target", target.Name, "id", id, "timeout", timeout.String(), "reason", err.Error())
		return false, nil
	default:
		p.recorder.ObservePoll(target.Name, metrics.ResultFailure, elapsed)
		return false, err
	}
}

func (p *Poller) wait(ctx context.Context, id string, target Target, timeout time.Duration) (bool, error) {
	return p.Wait(ctx, id, target, timeout, p.timeouts.PollInitial, p.timeouts.PollMax)
}

// WaitForNodeRunning waits up to Timeouts.NodeRunning.
func (p *Poller) WaitForNodeRunning(ctx context.Context, id string) (bool, error) {
	return p.wait(ctx, id, NodeRunning(p.client, p.meta), p.timeouts.NodeRunning)
}

// WaitForNodeSuspended waits up to Timeouts.NodeSuspended.
func (p *Poller) WaitForNodeSuspended(ctx context.Context, id string) (bool, error) {
	return p.wait(ctx, id, NodeSuspended(p.client, p.meta), p.timeouts.NodeSuspended)
}

// WaitForNodeTerminated waits up to Timeouts.NodeTerminated.
func (p *Poller) WaitForNodeTerminated(ctx context.Context, id string) (bool, error) {
	return p.wait(ctx, id, NodeTerminated(p.client, p.meta), p.timeouts.NodeTerminated)
}

// WaitForResource waits up to Timeouts.ResourceReady.
func (p *Poller) WaitForResource(ctx context.Context, kind provider.ResourceKind, id string) (bool, error) {
	return p.wait(ctx, id, ResourceAvailable(p.client, kind), p.timeouts.ResourceReady)
}

// WaitForResourceDeleted waits up to Timeouts.Delete.
func (p *Poller) WaitForResourceDeleted(ctx context.Context, kind provider.ResourceKind, id string) (bool, error) {
	return p.wait(ctx, id, ResourceDeleted(p.client, kind), p.timeouts.Delete)
}

// WaitForTask waits up to Timeouts.TaskDone.
func (p *Poller) WaitForTask(ctx context.Context, taskID string) (bool, error) {
	return p.wait(ctx, taskID, TaskDone(p.client), p.timeouts.TaskDone)
}

// WaitForPort waits up to timeout for host:port to accept connections.
func (p *Poller) WaitForPort(ctx context.Context, host string, port int, timeout time.Duration) (bool, error) {
	return p.wait(ctx, netutil.Address(host, port), PortOpen(p.dial), timeout)
}
