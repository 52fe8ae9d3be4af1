package hcloud

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/imamik/nodekit/internal/metrics"
)

// transport throttles requests with a token bucket and records them.
type transport struct {
	next     http.RoundTripper
	limiter  *rate.Limiter
	recorder *metrics.Recorder
	now      func() time.Time
}

func newTransport(next http.RoundTripper, rps float64, burst int, recorder *metrics.Recorder) *transport {
	if next == nil {
		next = http.DefaultTransport
	}
	t := &transport{next: next, recorder: recorder, now: time.Now}
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return t
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	start := t.now()
	resp, err := t.next.RoundTrip(req)
	code := 0
	if resp != nil {
		code = resp.StatusCode
	}
	t.recorder.ObserveAPICall(Name, endpointOf(req), code, t.now().Sub(start))
	return resp, err
}

// endpointOf reduces a request to "METHOD /collection" so that resource ids
// do not explode metric cardinality.
func endpointOf(req *http.Request) string {
	path := strings.Trim(req.URL.Path, "/")
	parts := strings.Split(path, "/")
	collection := parts[0]
	// Strip an API version prefix such as /v1.
	if len(parts) > 1 && len(collection) > 1 && collection[0] == 'v' && collection[1] >= '0' && collection[1] <= '9' {
		collection = parts[1]
	}
	return req.Method + " /" + collection
}
