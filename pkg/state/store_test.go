package state

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/taboola-tap/pkg/connector/rest"
	jsonpool "github.com/ajitpratap0/taboola-tap/pkg/json"
	"github.com/ajitpratap0/taboola-tap/pkg/testutil"
)

func account(id string) rest.Context {
	return rest.NewContext(map[string]interface{}{"account_id": id})
}

func TestAdvanceIgnoresLowerValuesUnlessTrusted(t *testing.T) {
	s := NewStore(nil, zap.NewNop())
	ctx := account("1")

	s.Advance("campaigns", ctx, rest.Bookmark{ReplicationKey: "updated", Value: "2024-01-05"}, false)
	s.Advance("campaigns", ctx, rest.Bookmark{ReplicationKey: "updated", Value: "2024-01-03"}, false)

	b, ok := s.Pending("campaigns", ctx)
	require.True(t, ok)
	assert.Equal(t, "2024-01-05", b.Value)

	s.Advance("campaigns", ctx, rest.Bookmark{ReplicationKey: "updated", Value: "2024-01-02"}, true)
	b, _ = s.Pending("campaigns", ctx)
	assert.Equal(t, "2024-01-02", b.Value)
}

func TestPendingIsNotVisibleUntilFinalized(t *testing.T) {
	backend := &testutil.MemoryBackend{}
	s := NewStore(backend, zap.NewNop())
	ctx := account("1")

	s.Advance("report", ctx, rest.Bookmark{ReplicationKey: "date", Value: "2024-01-01"}, true)
	_, ok := s.Get("report", ctx)
	assert.False(t, ok)

	require.NoError(t, s.Checkpoint(context.Background()))
	assert.NotContains(t, string(backend.Data), "2024-01-01")

	s.Finalize("report", ctx, nil)
	b, ok := s.Get("report", ctx)
	require.True(t, ok)
	assert.Equal(t, "2024-01-01", b.Value)

	_, ok = s.Pending("report", ctx)
	assert.False(t, ok)
}

func TestFinalizePrefersCursorAndNeverRegresses(t *testing.T) {
	s := NewStore(nil, zap.NewNop())
	ctx := account("7")

	s.Advance("report", ctx, rest.Bookmark{ReplicationKey: "date", Value: "2024-03-01"}, true)
	s.Finalize("report", ctx, &rest.Bookmark{ReplicationKey: "date", Value: "2024-03-04"})
	b, _ := s.Get("report", ctx)
	assert.Equal(t, "2024-03-04", b.Value)

	s.Finalize("report", ctx, &rest.Bookmark{ReplicationKey: "date", Value: "2024-02-01"})
	b, _ = s.Get("report", ctx)
	assert.Equal(t, "2024-03-04", b.Value)
}

func TestBookmarksAreScopedByContext(t *testing.T) {
	s := NewStore(nil, zap.NewNop())
	s.Advance("report", account("1"), rest.Bookmark{ReplicationKey: "date", Value: "2024-01-09"}, true)
	s.Finalize("report", account("1"), nil)

	_, ok := s.Get("report", account("2"))
	assert.False(t, ok)
	_, ok = s.Get("campaigns", account("1"))
	assert.False(t, ok)
}

func TestCheckpointAndLoadRoundTrip(t *testing.T) {
	backend := &testutil.MemoryBackend{}
	s := NewStore(backend, zap.NewNop())

	s.Advance("campaign_day_report", account("2"), rest.Bookmark{ReplicationKey: "date", Value: "2024-05-02"}, true)
	s.Finalize("campaign_day_report", account("2"), nil)
	s.Advance("counters", rest.EmptyContext(), rest.Bookmark{ReplicationKey: "seq", Value: decimal.RequireFromString("12345678901234567890.5")}, false)
	s.Finalize("counters", rest.EmptyContext(), nil)
	require.NoError(t, s.Checkpoint(context.Background()))

	assert.Contains(t, string(backend.Data), `"replication_key_value":12345678901234567890.5`)
	assert.Contains(t, string(backend.Data), `"context":{"account_id":"2"}`)

	loaded := NewStore(backend, zap.NewNop())
	require.NoError(t, loaded.Load(context.Background()))

	b, ok := loaded.Get("campaign_day_report", account("2"))
	require.True(t, ok)
	assert.Equal(t, "date", b.ReplicationKey)
	assert.Equal(t, "2024-05-02", b.Value)

	b, ok = loaded.Get("counters", rest.EmptyContext())
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("12345678901234567890.5").Equal(b.Value.(decimal.Decimal)))
}

func TestLoadWithoutSavedState(t *testing.T) {
	s := NewStore(&testutil.MemoryBackend{}, zap.NewNop())
	require.NoError(t, s.Load(context.Background()))
	assert.Empty(t, s.Document().Bookmarks)
}

func TestRestoreRejectsMalformedDocument(t *testing.T) {
	s := NewStore(nil, zap.NewNop())
	err := s.Restore([]byte(`{"bookmarks": [`))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "decode state document"))
}

func TestSnapshotIsSerializable(t *testing.T) {
	s := NewStore(nil, zap.NewNop())
	s.Advance("accounts", rest.EmptyContext(), rest.Bookmark{ReplicationKey: "id", Value: "9"}, false)
	s.Finalize("accounts", rest.EmptyContext(), nil)

	data, err := jsonpool.Marshal(s.Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, `{"bookmarks":{"accounts":{"partitions":[{"context":{},"replication_key":"id","replication_key_value":"9"}]}}}`, string(data))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b interface{}
		want int
	}{
		{"decimals", decimal.NewFromInt(10), decimal.NewFromInt(9), 1},
		{"numeric strings", "10", "9", 1},
		{"dates", "2024-01-02", "2024-01-10", -1},
		{"timestamps", "2024-01-02T10:00:00Z", "2024-01-02 09:00:00", 1},
		{"equal", "abc", "abc", 0},
		{"strings", "abc", "abd", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}
