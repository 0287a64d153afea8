package connectivity

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// HTTPProber treats any HTTP response from url as reachable and any
// transport error as unreachable.
type HTTPProber struct {
	url    string
	client *resty.Client
}

// NewHTTPProber creates a prober that sends HEAD requests to url.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			// A redirect is still an answer.
			return http.ErrUseLastResponse
		}))
	return &HTTPProber{url: url, client: client}
}

// Probe issues one HEAD request.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	resp, err := p.client.R().SetContext(ctx).Head(p.url)
	if err != nil {
		zap.L().Debug("connectivity: probe failed", zap.String("url", p.url), zap.Error(err))
		return false
	}
	zap.L().Debug("connectivity: probe answered",
		zap.String("url", p.url),
		zap.Int("status", resp.StatusCode()),
	)
	return true
}
