package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/nats-io/nats.go"
)

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

// NATSPublisher publishes every event as JSON on <prefix>.<type>.
// Publish errors are logged and never surface to the operation that
// emitted the event.
type NATSPublisher struct {
	conn   Conn
	prefix string
	log    logr.Logger
	now    func() time.Time
}

// DialNATS connects to url and returns a publisher.
func DialNATS(url, subjectPrefix string, log logr.Logger) (*NATSPublisher, error) {
	log = log.WithName("nats")
	opts := []nats.Option{
		nats.Name("nodekit"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Info("WARNING: disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return NewNATSPublisher(nc, subjectPrefix, log), nil
}

// NewNATSPublisher wraps an established connection.
func NewNATSPublisher(conn Conn, subjectPrefix string, log logr.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:   conn,
		prefix: strings.TrimSuffix(subjectPrefix, "."),
		log:    log,
		now:    time.Now,
	}
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(t EventType) string {
	return p.prefix + "." + string(t)
}

// Event implements Observer.
func (p *NATSPublisher) Event(event Event) {
	event = stamp(event, nil, p.now)
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error(err, "failed to encode event", "type", string(event.Type))
		return
	}
	if err := p.conn.Publish(p.Subject(event.Type), payload); err != nil {
		p.log.Info("WARNING: failed to publish event", "type", string(event.Type), "error", err.Error())
	}
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
