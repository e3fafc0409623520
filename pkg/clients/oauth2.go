package clients

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

// Authenticator decorates outgoing requests with credentials.
type Authenticator interface {
	Authorize(ctx context.Context, req *http.Request) error
}

// OAuth2Config configures the client credentials grant.
type OAuth2Config struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	TokenURL     string   `json:"token_url"`
	Scopes       []string `json:"scopes"`
}

// ClientCredentialsAuthenticator obtains bearer tokens with the OAuth2 client
// credentials grant. Tokens are cached and refreshed shortly before expiry;
// a single instance is meant to be shared by every stream of a run.
type ClientCredentialsAuthenticator struct {
	logger      *zap.Logger
	tokenSource oauth2.TokenSource

	tokenRequests int64
	lastToken     string
	mu            sync.Mutex
}

// NewClientCredentialsAuthenticator creates an authenticator. Token requests
// are sent through httpClient when it is non-nil.
func NewClientCredentialsAuthenticator(config OAuth2Config, httpClient *http.Client, logger *zap.Logger) *ClientCredentialsAuthenticator {
	if logger == nil {
		logger = zap.NewNop()
	}

	cc := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     config.TokenURL,
		Scopes:       config.Scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	ctx := context.Background()
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	return &ClientCredentialsAuthenticator{
		logger:      logger.With(zap.String("component", "oauth2")),
		tokenSource: oauth2.ReuseTokenSource(nil, cc.TokenSource(ctx)),
	}
}

// Token returns a valid access token, fetching a new one when needed.
func (a *ClientCredentialsAuthenticator) Token() (*oauth2.Token, error) {
	tok, err := a.tokenSource.Token()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "failed to obtain access token")
	}

	a.mu.Lock()
	if tok.AccessToken != a.lastToken {
		a.lastToken = tok.AccessToken
		atomic.AddInt64(&a.tokenRequests, 1)
		a.logger.Debug("obtained access token", zap.Time("expiry", tok.Expiry))
	}
	a.mu.Unlock()

	return tok, nil
}

// Authorize sets the bearer token on req.
func (a *ClientCredentialsAuthenticator) Authorize(_ context.Context, req *http.Request) error {
	tok, err := a.Token()
	if err != nil {
		return err
	}
	tok.SetAuthHeader(req)
	return nil
}

// TokenRequests reports how many distinct tokens were issued.
func (a *ClientCredentialsAuthenticator) TokenRequests() int64 {
	return atomic.LoadInt64(&a.tokenRequests)
}
