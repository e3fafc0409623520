// Package core defines the contracts shared by the tap's source, its
// destinations and its state backends.
package core

import (
	"context"
	"time"

	"github.com/ajitpratap0/taboola-tap/pkg/config"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	// ConnectorTypeSource reads from an upstream API
	ConnectorTypeSource ConnectorType = "source"
	// ConnectorTypeDestination receives messages
	ConnectorTypeDestination ConnectorType = "destination"
	// ConnectorTypeState persists bookmarks
	ConnectorTypeState ConnectorType = "state"
)

// Message types written to destinations.
const (
	MessageTypeRecord = "RECORD"
	MessageTypeState  = "STATE"
)

// RecordMessage carries one extracted record.
type RecordMessage struct {
	Type          string                 `json:"type"`
	Stream        string                 `json:"stream"`
	Record        map[string]interface{} `json:"record"`
	TimeExtracted time.Time              `json:"time_extracted"`
}

// StateMessage carries the committed bookmark document.
type StateMessage struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// NewRecordMessage builds a RECORD message.
func NewRecordMessage(stream string, record map[string]interface{}, extracted time.Time) RecordMessage {
	return RecordMessage{
		Type:          MessageTypeRecord,
		Stream:        stream,
		Record:        record,
		TimeExtracted: extracted.UTC(),
	}
}

// NewStateMessage builds a STATE message.
func NewStateMessage(value interface{}) StateMessage {
	return StateMessage{Type: MessageTypeState, Value: value}
}

// Destination receives extracted records and state checkpoints in order.
type Destination interface {
	WriteRecord(ctx context.Context, msg RecordMessage) error
	WriteState(ctx context.Context, msg StateMessage) error
	// Close flushes buffered output
	Close(ctx context.Context) error
}

// DeferredDelivery is implemented by destinations whose output is only
// delivered when they are closed.
type DeferredDelivery interface {
	DeliversOnClose() bool
}

// DeliversOnClose reports whether dest delivers its output only on Close.
// State for such destinations must be persisted after Close succeeds.
func DeliversOnClose(dest Destination) bool {
	d, ok := dest.(DeferredDelivery)
	return ok && d.DeliversOnClose()
}

// StateBackend persists the serialized bookmark document.
type StateBackend interface {
	// Load returns nil data when no state has been saved yet
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Close() error
}

// StreamInfo describes a stream for discovery output.
type StreamInfo struct {
	Name           string   `json:"stream"`
	Parent         string   `json:"parent,omitempty"`
	Path           string   `json:"path"`
	PrimaryKeys    []string `json:"key_properties"`
	ReplicationKey string   `json:"replication_key,omitempty"`
	Incremental    bool     `json:"incremental"`
	Selected       bool     `json:"selected"`
}

// SyncOptions tune a single run.
type SyncOptions struct {
	// FullRefresh ignores previously saved bookmarks
	FullRefresh bool
}

// SyncSummary reports the outcome of a run.
type SyncSummary struct {
	RecordsEmitted    int64         `json:"records_emitted"`
	RecordsDropped    int64         `json:"records_dropped"`
	PagesFetched      int64         `json:"pages_fetched"`
	ContextsCompleted int64         `json:"contexts_completed"`
	ContextsSkipped   int64         `json:"contexts_skipped"`
	Duration          time.Duration `json:"duration"`
}

// Source extracts streams into a destination.
type Source interface {
	Name() string
	Discover() []StreamInfo
	Sync(ctx context.Context, dest Destination, backend StateBackend, opts SyncOptions) (*SyncSummary, error)
	Close() error
}

// SourceFactory creates a source from the tap configuration.
type SourceFactory func(cfg *config.TapConfig) (Source, error)

// DestinationFactory creates a destination from the output configuration.
type DestinationFactory func(ctx context.Context, cfg *config.OutputConfig) (Destination, error)

// StateBackendFactory creates a state backend from the state configuration.
type StateBackendFactory func(ctx context.Context, cfg *config.StateConfig) (StateBackend, error)
