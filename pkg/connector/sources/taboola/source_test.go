package taboola

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/rest"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
	jsonpool "github.com/ajitpratap0/taboola-tap/pkg/json"
	"github.com/ajitpratap0/taboola-tap/pkg/state"
	"github.com/ajitpratap0/taboola-tap/pkg/testutil"
)

const reportPath = "/reports/campaign-summary/dimensions/campaign_breakdown"

type fakeBackstage struct {
	*httptest.Server
	tokenCalls int32
	apiCalls   int32
}

func newFakeBackstage(t *testing.T) *fakeBackstage {
	fb := &fakeBackstage{}
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		atomic.AddInt32(&fb.tokenCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600}`)
	})

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fb.apiCalls, 1)
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, "/api")
		w.Header().Set("Content-Type", "application/json")

		switch {
		case path == "/users/current/allowed-accounts":
			fmt.Fprint(w, `{"results":[{"id":1,"account_id":"acme","name":"Acme"},{"id":2,"account_id":"gone","name":"Gone"}]}`)
		case path == "/acme/campaigns":
			fmt.Fprint(w, `{"results":[{"id":"10","advertiser_id":"acme","cpc":0.25,"start_date_in_utc":"2024-01-01 00:00:00.0","end_date_in_utc":null}]}`)
		case path == "/acme/campaigns/10/items":
			fmt.Fprint(w, `{"results":[{"id":"i1","campaign_id":"10","url":"https://example.com"}]}`)
		case path == "/acme"+reportPath:
			assert.Equal(t, r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
			fmt.Fprint(w, `{"results":[{"campaign":"10","clicks":5,"spent":1.10}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"not found"}`)
		}
	})

	fb.Server = httptest.NewServer(mux)
	t.Cleanup(fb.Close)
	return fb
}

func testConfig(baseURL string) *config.TapConfig {
	cfg := config.NewTapConfig()
	cfg.ClientID = "id"
	cfg.ClientSecret = "secret"
	cfg.StartDate = "2024-01-01"
	cfg.BaseURL = baseURL + "/api"
	cfg.AuthURL = baseURL + "/oauth/token"
	cfg.Reliability.RetryAttempts = 1
	cfg.Reliability.RetryDelay = time.Millisecond
	cfg.Reliability.CircuitBreaker = false
	cfg.Reliability.RateLimitPerSec = 0
	return cfg
}

var clock = testutil.FixedClock(time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC))

func TestSyncEndToEnd(t *testing.T) {
	fb := newFakeBackstage(t)
	log, logs := testutil.ObservedLogger(zapcore.WarnLevel)

	src, err := NewSource(testConfig(fb.URL), WithClock(clock), WithLogger(log))
	require.NoError(t, err)
	defer src.Close()

	dest := &testutil.MemoryDestination{}
	backend := &testutil.MemoryBackend{}

	summary, err := src.Sync(testutil.TestContext(t), dest, backend, core.SyncOptions{})
	require.NoError(t, err)

	assert.Len(t, dest.StreamRecords(StreamAccounts), 2)

	campaigns := dest.StreamRecords(StreamCampaigns)
	require.Len(t, campaigns, 1)
	assert.Equal(t, "2024-01-01 00:00:00", campaigns[0]["start_date_in_utc"])
	assert.Nil(t, campaigns[0]["end_date_in_utc"])

	assert.Len(t, dest.StreamRecords(StreamCampaignItems), 1)

	report := dest.StreamRecords(StreamCampaignDayReport)
	require.Len(t, report, 2)
	assert.Equal(t, "2024-01-01", report[0]["date"])
	assert.Equal(t, "2024-01-02", report[1]["date"])

	line, err := jsonpool.Marshal(report[0])
	require.NoError(t, err)
	assert.Contains(t, string(line), `"spent":1.1`)

	skips := logs.FilterMessage("context not found, skipping remaining pages").All()
	require.Len(t, skips, 2)
	runID, _ := skips[0].ContextMap()["run_id"].(string)
	assert.NotEmpty(t, runID)
	assert.Equal(t, runID, skips[1].ContextMap()["run_id"])
	assert.Equal(t, int64(2), summary.ContextsSkipped)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fb.tokenCalls))

	store := state.NewStore(backend, nil)
	require.NoError(t, store.Load(context.Background()))
	b, ok := store.Get(StreamCampaignDayReport, rest.NewContext(map[string]interface{}{"account_id": "acme"}))
	require.True(t, ok)
	assert.Equal(t, "2024-01-02", b.Value)

	b, ok = store.Get(StreamCampaignDayReport, rest.NewContext(map[string]interface{}{"account_id": "gone"}))
	require.True(t, ok)
	assert.Equal(t, "2024-01-01", b.Value)

	last := dest.States[len(dest.States)-1]
	assert.Equal(t, core.MessageTypeState, last.Type)
}

func TestSyncResumesFromSavedState(t *testing.T) {
	fb := newFakeBackstage(t)
	cfg := testConfig(fb.URL)
	cfg.Streams = []string{StreamCampaignDayReport}
	cfg.AccountIDs = []string{"acme"}

	src, err := NewSource(cfg, WithClock(clock), WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)

	backend := &testutil.MemoryBackend{
		Data: []byte(`{"bookmarks":{"campaign_day_report":{"partitions":[{"context":{"account_id":"acme"},"replication_key":"date","replication_key_value":"2024-01-01"}]}}}`),
	}
	dest := &testutil.MemoryDestination{}
	_, err = src.Sync(testutil.TestContext(t), dest, backend, core.SyncOptions{})
	require.NoError(t, err)

	report := dest.StreamRecords(StreamCampaignDayReport)
	require.Len(t, report, 1)
	assert.Equal(t, "2024-01-02", report[0]["date"])
	assert.Empty(t, dest.StreamRecords(StreamAccounts))

	dest = &testutil.MemoryDestination{}
	_, err = src.Sync(testutil.TestContext(t), dest, backend, core.SyncOptions{FullRefresh: true})
	require.NoError(t, err)
	assert.Len(t, dest.StreamRecords(StreamCampaignDayReport), 2)
}

func TestSyncAccountAllowList(t *testing.T) {
	fb := newFakeBackstage(t)
	log, logs := testutil.ObservedLogger(zapcore.WarnLevel)
	cfg := testConfig(fb.URL)
	cfg.AccountIDs = []string{"acme", "missing"}
	cfg.Streams = []string{StreamAccounts, StreamCampaigns}

	src, err := NewSource(cfg, WithClock(clock), WithLogger(log))
	require.NoError(t, err)

	dest := &testutil.MemoryDestination{}
	_, err = src.Sync(testutil.TestContext(t), dest, &testutil.MemoryBackend{}, core.SyncOptions{})
	require.NoError(t, err)

	accounts := dest.StreamRecords(StreamAccounts)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acme", accounts[0]["account_id"])
	assert.Len(t, dest.StreamRecords(StreamCampaigns), 1)
	assert.Empty(t, dest.StreamRecords(StreamCampaignItems))

	unmatched := logs.FilterMessage("selected identifiers not returned by the API").All()
	require.Len(t, unmatched, 1)
	assert.Equal(t, []interface{}{"missing"}, unmatched[0].ContextMap()["unmatched"])
}

func TestSyncAuthenticationFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_client"}`)
	}))
	defer srv.Close()

	src, err := NewSource(testConfig(srv.URL), WithClock(clock), WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)

	backend := &testutil.MemoryBackend{}
	_, err = src.Sync(testutil.TestContext(t), &testutil.MemoryDestination{}, backend, core.SyncOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
	assert.Nil(t, backend.Data)
}

func TestNewSourceValidation(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.ClientSecret = ""
	_, err := NewSource(cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	cfg = testConfig("http://localhost")
	cfg.Streams = []string{"ads"}
	_, err = NewSource(cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestDiscover(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.Streams = []string{StreamCampaigns}
	src, err := NewSource(cfg, WithTransport(testutil.NewFakeTransport()))
	require.NoError(t, err)

	infos := src.Discover()
	require.Len(t, infos, 4)
	byName := map[string]core.StreamInfo{}
	for _, info := range infos {
		byName[info.Name] = info
	}
	assert.Equal(t, []string{"id", "advertiser_id"}, byName[StreamCampaigns].PrimaryKeys)
	assert.Equal(t, StreamAccounts, byName[StreamCampaigns].Parent)
	assert.True(t, byName[StreamCampaigns].Selected)
	assert.False(t, byName[StreamAccounts].Selected)
	assert.True(t, byName[StreamCampaignDayReport].Incremental)
	assert.Equal(t, "date", byName[StreamCampaignDayReport].ReplicationKey)
}

func TestStartDateDefaultsToLookback(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.StartDate = ""
	src, err := NewSource(cfg, WithClock(testutil.FixedClock(time.Date(2024, 3, 31, 10, 0, 0, 0, time.UTC))), WithTransport(testutil.NewFakeTransport()))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), src.StartDate())
}

func TestNormalizeCampaign(t *testing.T) {
	rec, keep := normalizeCampaign(map[string]interface{}{
		"start_date_in_utc": "2024-02-01 00:00:00.0",
		"end_date_in_utc":   "2024-03-01 23:59:59",
		"name":              "x.0",
	}, rest.EmptyContext())
	require.True(t, keep)
	assert.Equal(t, "2024-02-01 00:00:00", rec["start_date_in_utc"])
	assert.Equal(t, "2024-03-01 23:59:59", rec["end_date_in_utc"])
	assert.Equal(t, "x.0", rec["name"])
}

func TestChildContexts(t *testing.T) {
	parent, err := accountContext(map[string]interface{}{"account_id": "acme"}, rest.EmptyContext())
	require.NoError(t, err)
	child, err := campaignContext(map[string]interface{}{"id": "10"}, parent)
	require.NoError(t, err)
	assert.Equal(t, `{"account_id":"acme","campaign_id":"10"}`, child.Signature())

	_, err = campaignContext(map[string]interface{}{"name": "no id"}, parent)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}
