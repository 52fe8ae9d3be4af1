// Package strategy orchestrates node creation, aggregated listings and
// cleanup on top of a provider.Client.
//
// The Orchestrator resolves the prerequisite resources of a batch, creates
// its nodes concurrently and compensates for everything the batch created
// when it fails. The Lister fans listings out over regions and zones. The
// Cleaner destroys nodes and the shared resources they leave orphaned.
package strategy

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/imamik/nodekit/internal/compute/mapper"
	"github.com/imamik/nodekit/internal/compute/predicates"
	"github.com/imamik/nodekit/internal/events"
	"github.com/imamik/nodekit/internal/metrics"
	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/util/async"
)

// Deps carries the collaborators shared by the Orchestrator and the Cleaner.
type Deps struct {
	Client   provider.Client
	Mapper   *mapper.Mapper
	Poller   *predicates.Poller
	Lister   *Lister
	Pool     *async.Pool
	Observer events.Observer
	Recorder *metrics.Recorder
	Log      logr.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Observer == nil {
		d.Observer = events.Nop()
	}
	if d.Log.GetSink() == nil {
		d.Log = logr.Discard()
	}
	if d.Poller == nil {
		d.Poller = predicates.NewPoller(d.Client, predicates.WithRecorder(d.Recorder), predicates.WithLogger(d.Log))
	}
	if d.Mapper == nil {
		d.Mapper = mapper.New(d.Client.Metadata(), NewCatalog(d.Client), mapper.WithLogger(d.Log))
	}
	if d.Lister == nil {
		d.Lister = NewLister(d.Client, d.Pool, d.Mapper)
	}
	return d
}

// remove deletes one resource and waits until it is gone. A resource that
// is already gone counts as removed.
func remove(ctx context.Context, d Deps, group string, kind provider.ResourceKind, id string) error {
	err := deleteResource(ctx, d.Client, kind, id)
	switch {
	case provider.IsNotFound(err):
		err = nil
	case err == nil:
		err = waitDeleted(ctx, d.Poller, kind, id)
	}
	d.Recorder.RecordCleanup(string(kind), err)

	event := events.Event{Group: group, Kind: string(kind), Resource: id}
	if err != nil {
		event.Type = events.EventResourceCleanupFailed
		event.Error = err.Error()
		d.Observer.Event(event)
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	event.Type = events.EventResourceDeleted
	d.Observer.Event(event)
	return nil
}

// compensate removes a resource on behalf of a failed batch. It runs on a
// context detached from ctx, so a cancelled or expired caller context still
// gets everything the batch created deleted, bounded by the delete timeouts.
func compensate(ctx context.Context, d Deps, group string, kind provider.ResourceKind, id string) error {
	t := d.Poller.Timeouts()
	timeout := t.Delete
	if kind == provider.KindInstance {
		timeout += t.NodeTerminated
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return remove(ctx, d, group, kind, id)
}

func deleteResource(ctx context.Context, c provider.Client, kind provider.ResourceKind, id string) error {
	var err error
	switch kind {
	case provider.KindInstance:
		_, err = c.DeleteInstance(ctx, id)
	case provider.KindNetwork:
		err = c.DeleteNetwork(ctx, id)
	case provider.KindSubnet:
		err = c.DeleteSubnet(ctx, id)
	case provider.KindSecurityGroup:
		err = c.DeleteSecurityGroup(ctx, id)
	case provider.KindKeyPair:
		err = c.DeleteKeyPair(ctx, id)
	default:
		return fmt.Errorf("cannot delete resources of kind %q", kind)
	}
	return err
}

func waitDeleted(ctx context.Context, p *predicates.Poller, kind provider.ResourceKind, id string) error {
	var (
		ok  bool
		err error
	)
	switch kind {
	case provider.KindInstance:
		ok, err = p.WaitForNodeTerminated(ctx, id)
	case provider.KindKeyPair:
		return nil
	default:
		ok, err = p.WaitForResourceDeleted(ctx, kind, id)
	}
	if err != nil {
		return err
	}
	if !ok {
		return &StateError{Op: "delete " + string(kind), ID: id, Err: errNotReached}
	}
	return nil
}
