package jsonl

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/taboola-tap/pkg/compression"
	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	jsonpool "github.com/ajitpratap0/taboola-tap/pkg/json"
	"github.com/ajitpratap0/taboola-tap/pkg/testutil"
)

var extracted = time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

func readLines(t *testing.T, data []byte) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, jsonpool.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestWriterEncodesOneMessagePerLine(t *testing.T) {
	ctx := testutil.TestContext(t)
	var buf bytes.Buffer
	d, err := NewWriter(&buf, compression.None)
	require.NoError(t, err)

	require.NoError(t, d.WriteRecord(ctx, core.NewRecordMessage("accounts", map[string]interface{}{"account_id": "acme"}, extracted)))
	require.NoError(t, d.WriteState(ctx, core.NewStateMessage(map[string]interface{}{"bookmarks": map[string]interface{}{}})))

	lines := readLines(t, buf.Bytes())
	require.Len(t, lines, 2)
	assert.Equal(t, "RECORD", lines[0]["type"])
	assert.Equal(t, "accounts", lines[0]["stream"])
	assert.Equal(t, "2024-01-03T12:00:00Z", lines[0]["time_extracted"])
	assert.Equal(t, "STATE", lines[1]["type"])

	records, states := d.Written()
	assert.Equal(t, int64(1), records)
	assert.Equal(t, int64(1), states)
	require.NoError(t, d.Close(ctx))
}

func TestStateFlushesBufferedRecords(t *testing.T) {
	ctx := testutil.TestContext(t)
	var buf bytes.Buffer
	d, err := NewWriter(&buf, compression.None)
	require.NoError(t, err)

	require.NoError(t, d.WriteRecord(ctx, core.NewRecordMessage("accounts", map[string]interface{}{"account_id": "a"}, extracted)))
	assert.Zero(t, buf.Len(), "records stay buffered until a checkpoint")

	require.NoError(t, d.WriteState(ctx, core.NewStateMessage(nil)))
	assert.Len(t, readLines(t, buf.Bytes()), 2)
}

func TestCompressedFileRoundTrip(t *testing.T) {
	ctx := testutil.TestContext(t)
	path := filepath.Join(t.TempDir(), "out.jsonl.zst")

	dest, err := New(ctx, &config.OutputConfig{Destination: "jsonl", Path: path, Compression: "zstd"})
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, dest.WriteRecord(ctx, core.NewRecordMessage("accounts", map[string]interface{}{"account_id": id}, extracted)))
	}
	require.NoError(t, dest.Close(ctx))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := compression.NewReader(f, compression.Zstd)
	require.NoError(t, err)
	defer r.Close()

	var plain bytes.Buffer
	_, err = plain.ReadFrom(r)
	require.NoError(t, err)

	lines := readLines(t, plain.Bytes())
	require.Len(t, lines, 3)
	assert.Equal(t, "c", lines[2]["record"].(map[string]interface{})["account_id"])
}

func TestWriteAfterCloseFails(t *testing.T) {
	ctx := testutil.TestContext(t)
	d, err := NewWriter(&bytes.Buffer{}, compression.Gzip)
	require.NoError(t, err)
	require.NoError(t, d.Close(ctx))
	require.NoError(t, d.Close(ctx))

	assert.Error(t, d.WriteRecord(ctx, core.NewRecordMessage("accounts", nil, extracted)))
}

func TestUnknownCompressionRejected(t *testing.T) {
	_, err := New(testutil.TestContext(t), &config.OutputConfig{Path: "-", Compression: "brotli"})
	assert.Error(t, err)
}
