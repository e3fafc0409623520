// Package state keeps replication bookmarks per (stream, context) and
// persists them through a pluggable backend.
package state

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/rest"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
	jsonpool "github.com/ajitpratap0/taboola-tap/pkg/json"
	"github.com/ajitpratap0/taboola-tap/pkg/logger"
)

// Document is the persisted state layout.
type Document struct {
	Bookmarks map[string]StreamState `json:"bookmarks"`
}

// StreamState holds the partitions of one stream.
type StreamState struct {
	Partitions []Partition `json:"partitions"`
}

// Partition is the bookmark of one context.
type Partition struct {
	Context             map[string]interface{} `json:"context"`
	ReplicationKey      string                 `json:"replication_key"`
	ReplicationKeyValue interface{}            `json:"replication_key_value"`
}

type entry struct {
	sctx     rest.Context
	bookmark rest.Bookmark
}

// Store implements rest.Bookmarks over a core.StateBackend.
type Store struct {
	mu        sync.Mutex
	backend   core.StateBackend
	logger    *zap.Logger
	committed map[string]map[string]entry
	pending   map[string]map[string]entry
}

// NewStore creates an empty store. backend may be nil for a store that is
// never persisted.
func NewStore(backend core.StateBackend, log *zap.Logger) *Store {
	if log == nil {
		log = logger.Get()
	}
	return &Store{
		backend:   backend,
		logger:    log.With(zap.String("component", "state")),
		committed: make(map[string]map[string]entry),
		pending:   make(map[string]map[string]entry),
	}
}

// Load reads the committed document from the backend. A missing document
// leaves the store empty.
func (s *Store) Load(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	data, err := s.backend.Load(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "load state")
	}
	if len(data) == 0 {
		s.logger.Info("no saved state, starting fresh")
		return nil
	}
	return s.Restore(data)
}

// Restore replaces the committed bookmarks with the serialized document.
func (s *Store) Restore(data []byte) error {
	var doc Document
	if err := jsonpool.UnmarshalNumbers(data, &doc); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "decode state document")
	}

	committed := make(map[string]map[string]entry, len(doc.Bookmarks))
	for stream, ss := range doc.Bookmarks {
		for _, p := range ss.Partitions {
			values, err := jsonpool.Normalize(p.Context)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeState, "decode context of "+stream)
			}
			value, err := jsonpool.Normalize(p.ReplicationKeyValue)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeState, "decode bookmark of "+stream)
			}
			ctxValues, _ := values.(map[string]interface{})
			sctx := rest.NewContext(ctxValues)
			if committed[stream] == nil {
				committed[stream] = make(map[string]entry)
			}
			committed[stream][sctx.Signature()] = entry{
				sctx:     sctx,
				bookmark: rest.Bookmark{ReplicationKey: p.ReplicationKey, Value: value},
			}
		}
	}

	s.mu.Lock()
	s.committed = committed
	s.mu.Unlock()
	return nil
}

// Get returns the committed bookmark of (stream, sctx).
func (s *Store) Get(stream string, sctx rest.Context) (rest.Bookmark, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.committed[stream][sctx.Signature()]
	return e.bookmark, ok
}

// Pending returns the in-progress bookmark of (stream, sctx).
func (s *Store) Pending(stream string, sctx rest.Context) (rest.Bookmark, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pending[stream][sctx.Signature()]
	return e.bookmark, ok
}

// Advance raises the pending bookmark. Values not greater than the pending
// or committed value are ignored unless trusted.
func (s *Store) Advance(stream string, sctx rest.Context, b rest.Bookmark, trusted bool) {
	if b.Value == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sig := sctx.Signature()
	if !trusted {
		cur, ok := s.pending[stream][sig]
		if !ok {
			cur, ok = s.committed[stream][sig]
		}
		if ok && Compare(b.Value, cur.bookmark.Value) <= 0 {
			return
		}
	}
	if s.pending[stream] == nil {
		s.pending[stream] = make(map[string]entry)
	}
	s.pending[stream][sig] = entry{sctx: sctx, bookmark: b}
}

// Finalize commits the pending bookmark of (stream, sctx), or cursor when
// given. The committed value never moves backwards.
func (s *Store) Finalize(stream string, sctx rest.Context, cursor *rest.Bookmark) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig := sctx.Signature()
	candidate, ok := s.pending[stream][sig]
	delete(s.pending[stream], sig)
	if cursor != nil {
		candidate, ok = entry{sctx: sctx, bookmark: *cursor}, true
	}
	if !ok {
		return
	}

	if cur, exists := s.committed[stream][sig]; exists && Compare(candidate.bookmark.Value, cur.bookmark.Value) <= 0 {
		return
	}
	if s.committed[stream] == nil {
		s.committed[stream] = make(map[string]entry)
	}
	s.committed[stream][sig] = candidate
	s.logger.Debug("bookmark finalized",
		zap.String("stream", stream),
		zap.String("context", sig),
		zap.Any("value", candidate.bookmark.Value))
}

// Document returns the committed bookmarks. Partitions are ordered by
// context signature.
func (s *Store) Document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := Document{Bookmarks: make(map[string]StreamState, len(s.committed))}
	for stream, entries := range s.committed {
		sigs := make([]string, 0, len(entries))
		for sig := range entries {
			sigs = append(sigs, sig)
		}
		sort.Strings(sigs)

		ss := StreamState{Partitions: make([]Partition, 0, len(sigs))}
		for _, sig := range sigs {
			e := entries[sig]
			ss.Partitions = append(ss.Partitions, Partition{
				Context:             e.sctx.Values(),
				ReplicationKey:      e.bookmark.ReplicationKey,
				ReplicationKeyValue: e.bookmark.Value,
			})
		}
		doc.Bookmarks[stream] = ss
	}
	return doc
}

// Snapshot implements rest.Bookmarks.
func (s *Store) Snapshot() interface{} {
	return s.Document()
}

// Checkpoint writes the committed document to the backend.
func (s *Store) Checkpoint(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	data, err := jsonpool.Marshal(s.Document())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "encode state document")
	}
	if err := s.backend.Save(ctx, data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "save state")
	}
	return nil
}

// Compare orders two bookmark values. Numbers compare numerically, dates
// chronologically and anything else as strings.
func Compare(a, b interface{}) int {
	if da, ok := asDecimal(a); ok {
		if db, ok := asDecimal(b); ok {
			return da.Cmp(db)
		}
	}
	if ta, ok := asTime(a); ok {
		if tb, ok := asTime(b); ok {
			return ta.Compare(tb)
		}
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

func asDecimal(v interface{}) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case float64:
		return decimal.NewFromFloat(t), true
	case string:
		d, err := decimal.NewFromString(t)
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

var _ rest.Bookmarks = (*Store)(nil)
