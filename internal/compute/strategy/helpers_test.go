package strategy

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imamik/nodekit/internal/compute/predicates"
	"github.com/imamik/nodekit/internal/config"
	"github.com/imamik/nodekit/internal/events"
	"github.com/imamik/nodekit/internal/metrics"
	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/provider/fake"
	"github.com/imamik/nodekit/internal/util/async"
	"github.com/imamik/nodekit/internal/util/labels"
	"github.com/imamik/nodekit/pkg/compute"
)

// eventLog records every event it observes.
type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) Event(e events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

func (l *eventLog) count(t events.EventType) int {
	n := 0
	for _, got := range l.types() {
		if got == t {
			n++
		}
	}
	return n
}

func newTestDeps(p *fake.Provider) (Deps, *eventLog, *metrics.Recorder) {
	obs := &eventLog{}
	recorder := metrics.NewRecorder()
	d := Deps{
		Client:   p,
		Poller:   predicates.NewPoller(p, predicates.WithTimeouts(config.TestTimeouts()), predicates.WithRecorder(recorder)),
		Pool:     async.NewPool(4),
		Observer: obs,
		Recorder: recorder,
	}
	return d.withDefaults(), obs, recorder
}

func baseTemplate() compute.Template {
	return compute.Template{
		ImageID:    "img-ubuntu-2404",
		HardwareID: "small",
		LocationID: "eu-central",
	}
}

func autoTemplate() compute.Template {
	tmpl := baseTemplate()
	tmpl.Options.AutoCreateNetwork = true
	tmpl.Options.AutoCreateSecurityGroup = true
	return tmpl
}

func kinds(resources []fake.Resource) []provider.ResourceKind {
	out := make([]provider.ResourceKind, len(resources))
	for i, r := range resources {
		out[i] = r.Kind
	}
	return out
}

func countKind(resources []fake.Resource, kind provider.ResourceKind) int {
	n := 0
	for _, r := range resources {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

// launch creates an instance of group directly on the fake.
func launch(t *testing.T, p *fake.Provider, group, region, zone string) string {
	t.Helper()
	id, err := p.CreateInstance(context.Background(), provider.CreateInstanceParams{
		Name:     group + "-" + region,
		Region:   region,
		Zone:     zone,
		ImageID:  "img-debian-12",
		FlavorID: "small",
		Labels:   labels.NewLabelBuilder(group).Build(),
	})
	require.NoError(t, err)
	return id
}

// ctxClient fails deletes once their context is done, like an HTTP client,
// and runs hooks right after a network or an instance is created.
type ctxClient struct {
	*fake.Provider
	afterCreateNetwork  func()
	afterCreateInstance func()
}

func (c *ctxClient) CreateNetwork(ctx context.Context, params provider.CreateNetworkParams) (string, error) {
	id, err := c.Provider.CreateNetwork(ctx, params)
	if c.afterCreateNetwork != nil {
		c.afterCreateNetwork()
	}
	return id, err
}

func (c *ctxClient) CreateInstance(ctx context.Context, params provider.CreateInstanceParams) (string, error) {
	id, err := c.Provider.CreateInstance(ctx, params)
	if c.afterCreateInstance != nil {
		c.afterCreateInstance()
	}
	return id, err
}

func (c *ctxClient) DeleteInstance(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.Provider.DeleteInstance(ctx, id)
}

func (c *ctxClient) DeleteNetwork(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Provider.DeleteNetwork(ctx, id)
}

func (c *ctxClient) DeleteSubnet(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Provider.DeleteSubnet(ctx, id)
}

func (c *ctxClient) DeleteSecurityGroup(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Provider.DeleteSecurityGroup(ctx, id)
}

func (c *ctxClient) DeleteKeyPair(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Provider.DeleteKeyPair(ctx, name)
}
