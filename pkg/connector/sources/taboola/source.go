// Package taboola extracts Taboola Backstage accounts, campaigns, campaign
// items and daily campaign reports.
package taboola

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/taboola-tap/pkg/clients"
	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/rest"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
	"github.com/ajitpratap0/taboola-tap/pkg/logger"
	"github.com/ajitpratap0/taboola-tap/pkg/metrics"
	"github.com/ajitpratap0/taboola-tap/pkg/state"
)

// Source is the Taboola Backstage source.
type Source struct {
	cfg       *config.TapConfig
	logger    *zap.Logger
	now       func() time.Time
	client    *clients.HTTPClient
	auth      *clients.ClientCredentialsAuthenticator
	transport rest.Transport
	graph     *rest.Graph
}

// Option customizes a Source.
type Option func(*Source)

// WithClock replaces the clock used for report bounds and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.now = now }
}

// WithLogger sets the source logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// WithTransport replaces the HTTP transport.
func WithTransport(t rest.Transport) Option {
	return func(s *Source) { s.transport = t }
}

// NewSource validates the credentials and builds the stream graph. No
// request is made until Sync.
func NewSource(cfg *config.TapConfig, opts ...Option) (*Source, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "client_id and client_secret are required")
	}
	if _, _, err := cfg.StartTime(); err != nil {
		return nil, err
	}

	s := &Source{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger = s.logger.With(zap.String("source", "taboola"))

	if s.transport == nil {
		s.auth = clients.NewClientCredentialsAuthenticator(clients.OAuth2Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.AuthURL,
		}, &http.Client{Timeout: cfg.Timeouts.Request}, s.logger)

		s.client = clients.NewHTTPClient(httpConfig(cfg), s.auth, s.logger)
		s.transport = NewTransport(s.client, cfg.BaseURL, s.logger)
	}

	graph, err := rest.NewGraph(Streams(StreamOptions{AccountIDs: cfg.AccountIDs, Now: s.now})...)
	if err != nil {
		return nil, err
	}
	if err := graph.Select(cfg.Streams); err != nil {
		return nil, err
	}
	s.graph = graph

	return s, nil
}

func httpConfig(cfg *config.TapConfig) *clients.HTTPConfig {
	hc := clients.DefaultHTTPConfig()
	if cfg.UserAgent != "" {
		hc.UserAgent = cfg.UserAgent
	}
	if cfg.Timeouts.Request > 0 {
		hc.RequestTimeout = cfg.Timeouts.Request
		hc.ResponseHeaderTimeout = cfg.Timeouts.Request
	}
	if cfg.Timeouts.Connection > 0 {
		hc.DialTimeout = cfg.Timeouts.Connection
		hc.TLSHandshakeTimeout = cfg.Timeouts.Connection
	}
	if cfg.Timeouts.Idle > 0 {
		hc.IdleConnTimeout = cfg.Timeouts.Idle
	}
	if cfg.Timeouts.KeepAlive > 0 {
		hc.KeepAlive = cfg.Timeouts.KeepAlive
	}

	r := cfg.Reliability
	hc.RetryAttempts = r.RetryAttempts
	hc.RetryDelay = r.RetryDelay
	hc.RetryMultiplier = r.RetryMultiplier
	hc.MaxRetryDelay = r.MaxRetryDelay
	hc.CircuitBreakerEnabled = r.CircuitBreaker
	if r.FailureThreshold > 0 {
		hc.FailureThreshold = r.FailureThreshold
	}
	hc.RateLimit = float64(r.RateLimitPerSec)
	return hc
}

// Name returns the registered source name.
func (s *Source) Name() string { return "taboola" }

// Discover describes every stream.
func (s *Source) Discover() []core.StreamInfo {
	var out []core.StreamInfo
	for _, st := range s.graph.Streams() {
		out = append(out, core.StreamInfo{
			Name:           st.Name,
			Parent:         st.ParentName(),
			Path:           st.Path,
			PrimaryKeys:    st.PrimaryKeys,
			ReplicationKey: st.ReplicationKey,
			Incremental:    st.Incremental(),
			Selected:       s.graph.Selected(st),
		})
	}
	return out
}

// StartDate is the default start of streams without a bookmark: the
// configured start date, or the report lookback window ending today.
func (s *Source) StartDate() time.Time {
	if t, ok, _ := s.cfg.StartTime(); ok {
		return t
	}
	return rest.UTCDay(s.now()).AddDate(0, 0, -s.cfg.ReportLookbackDays)
}

// Sync extracts the selected streams into dest. Bookmarks are loaded from
// backend unless opts.FullRefresh is set.
func (s *Source) Sync(ctx context.Context, dest core.Destination, backend core.StateBackend, opts core.SyncOptions) (*core.SyncSummary, error) {
	ctx = logger.ContextWithRunID(ctx, uuid.NewString())
	log := logger.WithContext(ctx, s.logger)

	store := state.NewStore(backend, log)
	if opts.FullRefresh {
		log.Info("full refresh requested, ignoring saved bookmarks")
	} else if err := store.Load(ctx); err != nil {
		return nil, err
	}

	start := s.StartDate()
	log.Info("starting sync",
		zap.Time("start_date", start),
		zap.Strings("streams", s.cfg.Streams),
		zap.Strings("account_ids", s.cfg.AccountIDs))

	pipeline := rest.NewPipeline(s.transport, log).WithClock(s.now)
	driver := rest.NewDriver(s.graph, pipeline, store, dest, log, start)

	summary, err := driver.Run(ctx)
	if summary != nil {
		metrics.SyncDuration.Observe(summary.Duration.Seconds())
	}
	if s.auth != nil {
		log.Debug("token usage", zap.Int64("tokens_issued", s.auth.TokenRequests()))
	}
	return summary, err
}

// Close releases idle HTTP connections.
func (s *Source) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

var _ core.Source = (*Source)(nil)
