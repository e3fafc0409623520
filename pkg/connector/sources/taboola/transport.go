package taboola

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/taboola-tap/pkg/clients"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/rest"
	"github.com/ajitpratap0/taboola-tap/pkg/observability"
)

// Transport sends engine requests to the Backstage API.
type Transport struct {
	client  *clients.HTTPClient
	baseURL string
	logger  *zap.Logger
}

// NewTransport creates a transport rooted at baseURL.
func NewTransport(client *clients.HTTPClient, baseURL string, logger *zap.Logger) *Transport {
	return &Transport{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Request implements rest.Transport.
func (t *Transport) Request(ctx context.Context, path string, query url.Values, sctx rest.Context) (*rest.RawPage, error) {
	u := t.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	ctx, span := observability.StartSpan(ctx, "GET "+path, map[string]string{"context": sctx.Signature()})
	resp, err := t.client.Get(ctx, u, map[string]string{"Accept": "application/json"})
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	t.logger.Debug("fetched page", zap.String("url", u), zap.Int("bytes", len(resp.Body)))
	return &rest.RawPage{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}
