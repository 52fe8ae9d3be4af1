// Package events emits structured lifecycle events of nodes and the shared
// resources created for them.
//
// An Observer receives every event synchronously. Implementations must not
// block for long; the NATS publisher only buffers into the client library.
package events

import (
	"maps"
	"time"

	"github.com/go-logr/logr"
)

// EventType represents the type of lifecycle event.
type EventType string

const (
	// EventBatchStarted indicates a batch creation has started.
	EventBatchStarted EventType = "batch.started"
	// EventBatchCompleted indicates a batch creation finished, with or without failures.
	EventBatchCompleted EventType = "batch.completed"

	// EventNodeCreating indicates an instance create call is being issued.
	EventNodeCreating EventType = "node.creating"
	// EventNodeRunning indicates a node reached RUNNING.
	EventNodeRunning EventType = "node.running"
	// EventNodeFailed indicates a node could not be brought up.
	EventNodeFailed EventType = "node.failed"
	// EventNodeDestroyed indicates a node was destroyed.
	EventNodeDestroyed EventType = "node.destroyed"
	// EventNodePower indicates a reboot, suspend or resume.
	EventNodePower EventType = "node.power"

	// EventResourceCreated indicates a prerequisite resource was created.
	EventResourceCreated EventType = "resource.created"
	// EventResourceReused indicates an existing resource was reused.
	EventResourceReused EventType = "resource.reused"
	// EventResourceDeleted indicates a resource was deleted.
	EventResourceDeleted EventType = "resource.deleted"
	// EventResourceCleanupFailed indicates a best-effort deletion failed.
	EventResourceCleanupFailed EventType = "resource.cleanup_failed"
)

// Event represents a structured lifecycle event.
type Event struct {
	Type      EventType         `json:"type"`
	Group     string            `json:"group,omitempty"`
	Kind      string            `json:"kind,omitempty"`     // resource kind, e.g. "node", "network"
	Resource  string            `json:"resource,omitempty"` // resource name or id
	Message   string            `json:"message,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Observer receives lifecycle events.
type Observer interface {
	Event(event Event)
}

// Nop returns an observer that drops everything.
func Nop() Observer {
	return nopObserver{}
}

type nopObserver struct{}

func (nopObserver) Event(Event) {}

// Multi fans one event out to several observers in order.
func Multi(observers ...Observer) Observer {
	var out multi
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type multi []Observer

func (m multi) Event(event Event) {
	for _, o := range m {
		o.Event(event)
	}
}

// LogObserver writes events to a logr.Logger.
type LogObserver struct {
	log    logr.Logger
	fields map[string]string
	now    func() time.Time
}

// NewLogObserver creates an observer logging through log.
func NewLogObserver(log logr.Logger) *LogObserver {
	return &LogObserver{log: log.WithName("events"), fields: map[string]string{}, now: time.Now}
}

// WithFields returns a new LogObserver with additional context fields.
func (o *LogObserver) WithFields(fields map[string]string) *LogObserver {
	merged := maps.Clone(o.fields)
	maps.Copy(merged, fields)
	return &LogObserver{log: o.log, fields: merged, now: o.now}
}

// Event implements Observer.
func (o *LogObserver) Event(event Event) {
	event = stamp(event, o.fields, o.now)

	kv := []any{"type", string(event.Type)}
	if event.Group != "" {
		kv = append(kv, "group", event.Group)
	}
	if event.Kind != "" {
		kv = append(kv, "kind", event.Kind)
	}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}
	for k, v := range event.Fields {
		kv = append(kv, k, v)
	}

	msg := event.Message
	if msg == "" {
		msg = string(event.Type)
	}
	switch event.Type {
	case EventNodeFailed, EventResourceCleanupFailed:
		o.log.Info("WARNING: "+msg, append(kv, "error", event.Error)...)
	default:
		o.log.Info(msg, kv...)
	}
}

// stamp fills the timestamp and merges context fields without overriding
// fields set on the event.
func stamp(event Event, fields map[string]string, now func() time.Time) Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = now()
	}
	if len(fields) == 0 {
		return event
	}
	merged := maps.Clone(fields)
	maps.Copy(merged, event.Fields)
	event.Fields = merged
	return event
}
