package kafka

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/testutil"
)

var extracted = time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

func contains(substr string) mocks.ValueChecker {
	return func(val []byte) error {
		if !strings.Contains(string(val), substr) {
			return fmt.Errorf("%s does not contain %s", val, substr)
		}
		return nil
	}
}

func TestStateFollowsBufferedRecords(t *testing.T) {
	ctx := testutil.TestContext(t)
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(contains(`"account_id":"a"`))
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(contains(`"account_id":"b"`))
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(contains(`"type":"STATE"`))

	d := NewWithProducer(producer, "taboola.records", "")
	require.NoError(t, d.WriteRecord(ctx, core.NewRecordMessage("accounts", map[string]interface{}{"account_id": "a"}, extracted)))
	require.NoError(t, d.WriteRecord(ctx, core.NewRecordMessage("accounts", map[string]interface{}{"account_id": "b"}, extracted)))
	assert.Len(t, d.pending, 2)

	require.NoError(t, d.WriteState(ctx, core.NewStateMessage(map[string]interface{}{})))
	assert.Empty(t, d.pending)
	require.NoError(t, d.Close(ctx))
}

func TestBatchSizeTriggersSend(t *testing.T) {
	ctx := testutil.TestContext(t)
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndSucceed()

	d := NewWithProducer(producer, "records", "state")
	d.batchSize = 2
	require.NoError(t, d.WriteRecord(ctx, core.NewRecordMessage("campaigns", nil, extracted)))
	require.NoError(t, d.WriteRecord(ctx, core.NewRecordMessage("campaigns", nil, extracted)))
	assert.Empty(t, d.pending)
	require.NoError(t, d.Close(ctx))
}

func TestPublishFailureIsReported(t *testing.T) {
	ctx := testutil.TestContext(t)
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	d := NewWithProducer(producer, "records", "")
	require.NoError(t, d.WriteRecord(ctx, core.NewRecordMessage("accounts", nil, extracted)))
	err := d.WriteState(ctx, core.NewStateMessage(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish records")
	_ = producer.Close()
}

func TestProducerConfigCompression(t *testing.T) {
	assert.Equal(t, sarama.CompressionZSTD, producerConfig("zstd").Producer.Compression)
	assert.Equal(t, sarama.CompressionGZIP, producerConfig("gzip").Producer.Compression)
	assert.Equal(t, sarama.CompressionNone, producerConfig("none").Producer.Compression)
	assert.True(t, producerConfig("").Producer.Return.Successes)
}

func TestNewRequiresBrokersAndTopic(t *testing.T) {
	_, err := New(testutil.TestContext(t), &config.OutputConfig{Destination: "kafka"})
	assert.Error(t, err)
}
