package client

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/residenciauni/residencia/pkg/contextkeys"
	"github.com/residenciauni/residencia/pkg/observability"
)

// RequestIDHeader carries the per-request id to the backend
const RequestIDHeader = "X-Request-ID"

// requestIDTransport stamps every request with an id from the context or a new UUID
type requestIDTransport struct {
	base http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	id := contextkeys.GetRequestID(req.Context())
	if id == "" {
		id = uuid.NewString()
	}
	req = req.Clone(req.Context())
	req.Header.Set(RequestIDHeader, id)
	return t.base.RoundTrip(req)
}

// metricsTransport records request counts and latency per module
type metricsTransport struct {
	base    http.RoundTripper
	metrics *observability.Metrics
}

func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	t.metrics.ObserveRequest(contextkeys.GetModule(req.Context()), req.Method, status, time.Since(start))
	return resp, err
}

// buildTransport layers bearer auth, metrics, request ids and tracing over base
func buildTransport(base http.RoundTripper, token string, metrics *observability.Metrics) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	var rt http.RoundTripper = otelhttp.NewTransport(base)
	rt = &requestIDTransport{base: rt}
	if metrics != nil {
		rt = &metricsTransport{base: rt, metrics: metrics}
	}
	if token != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   rt,
		}
	}
	return rt
}
