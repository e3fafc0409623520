// Package kafka publishes RECORD and STATE messages to Kafka topics.
package kafka

import (
	"context"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/registry"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
	jsonpool "github.com/ajitpratap0/taboola-tap/pkg/json"
	"github.com/ajitpratap0/taboola-tap/pkg/logger"
)

// DefaultBatchSize is the number of records buffered before a send.
const DefaultBatchSize = 500

func init() {
	_ = registry.RegisterDestination("kafka", New)
}

// Destination buffers records and sends them in batches through a sync
// producer. A STATE message first sends every buffered record, so a
// checkpoint is only published after the records it covers.
type Destination struct {
	mu         sync.Mutex
	producer   sarama.SyncProducer
	topic      string
	stateTopic string
	batchSize  int
	pending    []*sarama.ProducerMessage
	logger     *zap.Logger
}

// New connects a sync producer to cfg.Brokers.
func New(_ context.Context, cfg *config.OutputConfig) (core.Destination, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "output.brokers and output.topic are required for kafka")
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, producerConfig(cfg.Compression))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "create kafka producer")
	}
	return NewWithProducer(producer, cfg.Topic, cfg.StateTopic), nil
}

// NewWithProducer creates a destination over an existing producer. An empty
// stateTopic publishes STATE messages on topic.
func NewWithProducer(producer sarama.SyncProducer, topic, stateTopic string) *Destination {
	if stateTopic == "" {
		stateTopic = topic
	}
	return &Destination{
		producer:   producer,
		topic:      topic,
		stateTopic: stateTopic,
		batchSize:  DefaultBatchSize,
		logger:     logger.Get().With(zap.String("component", "kafka_destination")),
	}
}

func producerConfig(compression string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_1_0_0

	switch compression {
	case "gzip":
		cfg.Producer.Compression = sarama.CompressionGZIP
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	case "s2":
		cfg.Producer.Compression = sarama.CompressionSnappy
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}
	return cfg
}

// WriteRecord implements core.Destination. Records are keyed by stream so
// each stream keeps its order within one partition.
func (d *Destination) WriteRecord(ctx context.Context, msg core.RecordMessage) error {
	value, err := jsonpool.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "encode record of "+msg.Stream)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, &sarama.ProducerMessage{
		Topic:     d.topic,
		Key:       sarama.StringEncoder(msg.Stream),
		Value:     sarama.ByteEncoder(value),
		Headers:   headers(core.MessageTypeRecord, msg.Stream),
		Timestamp: msg.TimeExtracted,
	})
	if len(d.pending) < d.batchSize {
		return nil
	}
	return d.flush(ctx)
}

// WriteState implements core.Destination.
func (d *Destination) WriteState(ctx context.Context, msg core.StateMessage) error {
	value, err := jsonpool.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "encode state")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.flush(ctx); err != nil {
		return err
	}
	_, _, err = d.producer.SendMessage(&sarama.ProducerMessage{
		Topic:   d.stateTopic,
		Key:     sarama.StringEncoder(core.MessageTypeState),
		Value:   sarama.ByteEncoder(value),
		Headers: headers(core.MessageTypeState, ""),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "publish state")
	}
	return nil
}

func (d *Destination) flush(ctx context.Context) error {
	if len(d.pending) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.producer.SendMessages(d.pending); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "publish records")
	}
	d.logger.Debug("records published", zap.Int("count", len(d.pending)), zap.String("topic", d.topic))
	d.pending = d.pending[:0]
	return nil
}

// Close implements core.Destination.
func (d *Destination) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	flushErr := d.flush(ctx)
	if err := d.producer.Close(); err != nil && flushErr == nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "close kafka producer")
	}
	return flushErr
}

func headers(msgType, stream string) []sarama.RecordHeader {
	h := []sarama.RecordHeader{
		{Key: []byte("type"), Value: []byte(msgType)},
		{Key: []byte("content-type"), Value: []byte("application/json")},
	}
	if stream != "" {
		h = append(h, sarama.RecordHeader{Key: []byte("stream"), Value: []byte(stream)})
	}
	return h
}
