package rest

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
	"github.com/ajitpratap0/taboola-tap/pkg/logger"
	"github.com/ajitpratap0/taboola-tap/pkg/metrics"
)

// Record is one post-processed record of a stream context.
type Record struct {
	Stream      string
	Data        map[string]interface{}
	Context     Context
	ExtractedAt time.Time
}

// Pipeline turns transport pages into records.
type Pipeline struct {
	transport Transport
	logger    *zap.Logger
	now       func() time.Time
}

// NewPipeline creates a pipeline over transport. A nil logger uses the
// global logger.
func NewPipeline(transport Transport, log *zap.Logger) *Pipeline {
	if log == nil {
		log = logger.Get()
	}
	return &Pipeline{
		transport: transport,
		logger:    log.With(zap.String("component", "pipeline")),
		now:       time.Now,
	}
}

// WithClock replaces the clock used for extraction timestamps.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Now returns the pipeline clock reading.
func (p *Pipeline) Now() time.Time {
	return p.now()
}

// Open prepares the extraction of one stream context. Nothing is fetched
// until the records are consumed.
func (p *Pipeline) Open(stream *Stream, sctx Context, start Start) *Run {
	return &Run{
		pipeline: p,
		stream:   stream,
		sctx:     sctx,
		start:    start,
		state:    StatePending,
		logger: p.logger.With(
			zap.String("stream", stream.Name),
			zap.String("context", sctx.Signature()),
		),
	}
}

// Run is the single-use extraction of one (stream, context).
type Run struct {
	pipeline *Pipeline
	stream   *Stream
	sctx     Context
	start    Start
	logger   *zap.Logger

	state      ContextState
	cursor     Cursor
	attempted  bool
	pages      int64
	emitted    int64
	dropped    int64
	seen       map[string]bool
	onPageDone func(Cursor)
}

// State returns the current state of the context.
func (r *Run) State() ContextState { return r.state }

// Cursor returns the cursor of the last page fetch attempt.
func (r *Run) Cursor() Cursor { return r.cursor }

// Attempted reports whether at least one page fetch was started.
func (r *Run) Attempted() bool { return r.attempted }

// Pages returns the number of pages fetched successfully.
func (r *Run) Pages() int64 { return r.pages }

// Emitted returns the number of records yielded.
func (r *Run) Emitted() int64 { return r.emitted }

// Dropped returns the number of records rejected by post-processing.
func (r *Run) Dropped() int64 { return r.dropped }

// OnPageDone registers fn to run after every record of a page was consumed.
func (r *Run) OnPageDone(fn func(Cursor)) { r.onPageDone = fn }

// Records returns the lazy record sequence. Each page is fetched when the
// previous one is exhausted. A context-not-found response ends the sequence
// without error; any other failure is yielded once and ends it. If the
// consumer stops early the run stays unfinished.
func (r *Run) Records(ctx context.Context) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		if r.state != StatePending {
			yield(nil, errors.Newf(errors.ErrorTypeInternal, "records of %s %s already consumed", r.stream.Name, r.sctx))
			return
		}

		fail := func(err error) {
			r.state = StateFatal
			yield(nil, err)
		}

		paginator, err := r.stream.newPaginator(r.start)
		if err != nil {
			fail(err)
			return
		}
		path, err := r.sctx.Resolve(r.stream.Path)
		if err != nil {
			fail(err)
			return
		}

		cursor, ok := paginator.Begin()
		if !ok {
			r.logger.Debug("nothing to fetch")
			r.state = StateCompleted
			return
		}

		for {
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}

			r.state = StateFetching
			r.cursor = cursor
			r.attempted = true

			res := r.fetch(ctx, path, cursor)
			switch res.Status {
			case FetchContextNotFound:
				r.state = StateSkipped
				metrics.ContextsSkipped.WithLabelValues(r.stream.Name).Inc()
				r.logger.Warn("context not found, skipping remaining pages",
					zap.Any("context_values", r.sctx.Values()),
					zap.Stringer("cursor", cursor),
					zap.Error(res.Err))
				return
			case FetchFatal:
				fail(res.Err)
				return
			}

			r.state = StateEmittingPage
			r.pages++
			metrics.PagesFetched.WithLabelValues(r.stream.Name).Inc()

			for _, raw := range res.Page.Records {
				rec, keep := r.process(raw, cursor)
				if !keep {
					continue
				}
				r.emitted++
				if !yield(rec, nil) {
					return
				}
			}

			if r.onPageDone != nil {
				r.onPageDone(cursor)
			}

			if len(res.Page.Records) == 0 && !paginator.ContinueOnEmpty() {
				break
			}
			if !paginator.HasMore(res.Page) {
				break
			}
			cursor = paginator.Next(res.Page)
		}

		r.state = StateCompleted
		r.warnUnmatched()
	}
}

func (r *Run) fetch(ctx context.Context, path string, cursor Cursor) FetchResult {
	raw, err := r.pipeline.transport.Request(ctx, path, r.stream.params(r.sctx, cursor), r.sctx)
	if err != nil {
		if ctx.Err() != nil {
			return FetchResult{Status: FetchFatal, Err: err}
		}
		status := r.stream.resumePolicy().Classify(err)
		return FetchResult{Status: status, Err: err}
	}

	page, err := ExtractPage(raw, r.stream.recordsExpr, cursor)
	if err != nil {
		return FetchResult{Status: FetchFatal, Err: errors.Wrap(err, errors.ErrorTypeData, "extract "+r.stream.Name+" page")}
	}
	return FetchResult{Status: FetchOK, Page: page}
}

func (r *Run) process(raw map[string]interface{}, cursor Cursor) (*Record, bool) {
	s := r.stream

	if s.NaturalKey != "" {
		if v, ok := raw[s.NaturalKey]; !ok || v == nil {
			r.drop("null_key")
			r.logger.Warn("dropping record without natural key", zap.String("key", s.NaturalKey))
			return nil, false
		}
	}

	if len(s.Selection) > 0 {
		id := fmt.Sprint(raw[s.NaturalKey])
		if !contains(s.Selection, id) {
			r.drop("not_selected")
			return nil, false
		}
		if r.seen == nil {
			r.seen = make(map[string]bool)
		}
		r.seen[id] = true
	}

	if s.CursorField != "" {
		if day, ok := cursor.Date(); ok {
			raw[s.CursorField] = day.Format(config.DateLayout)
		}
	}

	data := raw
	if s.PostProcess != nil {
		var keep bool
		data, keep = s.PostProcess(raw, r.sctx)
		if !keep {
			r.drop("post_process")
			return nil, false
		}
	}

	return &Record{
		Stream:      s.Name,
		Data:        data,
		Context:     r.sctx,
		ExtractedAt: r.pipeline.now().UTC(),
	}, true
}

func (r *Run) drop(reason string) {
	r.dropped++
	metrics.RecordsDropped.WithLabelValues(r.stream.Name, reason).Inc()
}

func (r *Run) warnUnmatched() {
	if len(r.stream.Selection) == 0 {
		return
	}
	var missing []string
	for _, id := range r.stream.Selection {
		if !r.seen[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return
	}
	sort.Strings(missing)
	r.logger.Warn("selected identifiers not returned by the API", zap.Strings("unmatched", missing))
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
