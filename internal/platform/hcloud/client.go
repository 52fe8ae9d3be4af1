package hcloud

import (
	"net/http"
	"sync"

	"github.com/go-logr/logr"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodekit/internal/config"
	"github.com/imamik/nodekit/internal/metrics"
	"github.com/imamik/nodekit/internal/provider"
)

// Name identifies the provider in metadata, metrics and events.
const Name = "hcloud"

var _ provider.Client = (*Provider)(nil)

// Provider is a provider.Client backed by the Hetzner Cloud API.
type Provider struct {
	client   *hcloud.Client
	timeouts *config.Timeouts
	log      logr.Logger

	endpoint  string
	rateLimit float64
	burst     int
	recorder  *metrics.Recorder
	base      http.RoundTripper

	// Hetzner has no per-resource action listing, so the actions this
	// process started are remembered by resource id.
	mu      sync.Mutex
	actions map[string][]int64
}

// Option configures a Provider.
type Option func(*Provider)

// WithTimeouts sets custom timeouts for retried deletes.
func WithTimeouts(t *config.Timeouts) Option {
	return func(p *Provider) {
		p.timeouts = t
	}
}

// WithEndpoint overrides the API endpoint.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithRateLimit limits requests to rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(p *Provider) {
		p.rateLimit = rps
		p.burst = burst
	}
}

// WithRecorder records every API call.
func WithRecorder(r *metrics.Recorder) Option {
	return func(p *Provider) {
		p.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(p *Provider) {
		p.log = log
	}
}

// WithTransport sets the round tripper below the rate limiter.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Provider) {
		p.base = rt
	}
}

// WithHCloudClient uses an already configured hcloud client. Endpoint,
// transport and rate limit options are ignored.
func WithHCloudClient(hc *hcloud.Client) Option {
	return func(p *Provider) {
		p.client = hc
	}
}

// New creates a Provider authenticated with token.
func New(token string, opts ...Option) *Provider {
	p := &Provider{
		timeouts: config.LoadTimeouts(),
		log:      logr.Discard(),
		base:     http.DefaultTransport,
		actions:  map[string][]int64{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.WithName("hcloud")

	if p.client == nil {
		clientOpts := []hcloud.ClientOption{
			hcloud.WithToken(token),
			hcloud.WithApplication("nodekit", ""),
			hcloud.WithHTTPClient(&http.Client{
				Transport: newTransport(p.base, p.rateLimit, p.burst, p.recorder),
			}),
		}
		if p.endpoint != "" {
			clientOpts = append(clientOpts, hcloud.WithEndpoint(p.endpoint))
		}
		p.client = hcloud.NewClient(clientOpts...)
	}
	return p
}

// NewFromConfig creates a Provider from the hcloud section of the config file.
func NewFromConfig(cfg config.HCloudConfig, opts ...Option) *Provider {
	base := []Option{WithRateLimit(cfg.RateLimit, cfg.Burst)}
	if cfg.Endpoint != "" {
		base = append(base, WithEndpoint(cfg.Endpoint))
	}
	return New(cfg.Token, append(base, opts...)...)
}

// HCloudClient returns the underlying hcloud.Client for advanced operations.
func (p *Provider) HCloudClient() *hcloud.Client {
	return p.client
}

// Metadata describes the Hetzner vendor values.
func (p *Provider) Metadata() provider.Metadata {
	return provider.Metadata{
		Name:             Name,
		NodeStatus:       nodeStatus,
		ImageStatus:      imageStatus,
		OSAliases:        osAliases,
		ZoneScoped:       false,
		DefaultLoginUser: "root",
		LoginPort:        22,
	}
}

func (p *Provider) rememberAction(resourceID string, action *hcloud.Action) string {
	if action == nil {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions[resourceID] = append(p.actions[resourceID], action.ID)
	return formatID(action.ID)
}

func (p *Provider) rememberedActions(resourceID string) []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.actions[resourceID]...)
}
