package rest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
	"github.com/ajitpratap0/taboola-tap/pkg/logger"
	"github.com/ajitpratap0/taboola-tap/pkg/metrics"
	"github.com/ajitpratap0/taboola-tap/pkg/observability"
)

// Driver walks the stream graph depth-first. For every parent record it
// fully drives the child contexts derived from it before reading the next
// parent record.
type Driver struct {
	graph     *Graph
	pipeline  *Pipeline
	bookmarks Bookmarks
	dest      core.Destination
	logger    *zap.Logger
	startDate time.Time

	summary core.SyncSummary
}

// NewDriver creates a driver. startDate is the default start of streams
// without a bookmark.
func NewDriver(graph *Graph, pipeline *Pipeline, bookmarks Bookmarks, dest core.Destination, log *zap.Logger, startDate time.Time) *Driver {
	if log == nil {
		log = logger.Get()
	}
	return &Driver{
		graph:     graph,
		pipeline:  pipeline,
		bookmarks: bookmarks,
		dest:      dest,
		logger:    log.With(zap.String("component", "driver")),
		startDate: startDate,
	}
}

// Run extracts every root stream and its descendants. Bookmarks finalized
// before a failure stay checkpointed.
func (d *Driver) Run(ctx context.Context) (*core.SyncSummary, error) {
	timer := metrics.NewTimer("sync")
	d.summary = core.SyncSummary{}

	for _, root := range d.graph.Roots() {
		if err := d.drive(ctx, root, EmptyContext()); err != nil {
			d.summary.Duration = timer.Stop()
			return &d.summary, err
		}
	}

	if err := d.checkpoint(ctx); err != nil {
		d.summary.Duration = timer.Stop()
		return &d.summary, err
	}

	d.summary.Duration = timer.Stop()
	d.logger.Info("sync finished",
		zap.Int64("records_emitted", d.summary.RecordsEmitted),
		zap.Int64("records_dropped", d.summary.RecordsDropped),
		zap.Int64("pages_fetched", d.summary.PagesFetched),
		zap.Int64("contexts_completed", d.summary.ContextsCompleted),
		zap.Int64("contexts_skipped", d.summary.ContextsSkipped),
		zap.Duration("duration", d.summary.Duration))

	return &d.summary, nil
}

func (d *Driver) drive(ctx context.Context, s *Stream, sctx Context) (err error) {
	ctx, span := observability.StartSpan(ctx, "extract "+s.Name, map[string]string{
		"stream":  s.Name,
		"context": sctx.Signature(),
	})
	defer func() { observability.EndSpan(span, err) }()

	selected := d.graph.Selected(s)
	tracked := selected && s.Incremental()

	start := Start{Default: d.startDate}
	if tracked {
		if b, ok := d.bookmarks.Get(s.Name, sctx); ok {
			start.Bookmark = b.Value
			start.HasBookmark = true
		}
	}

	run := d.pipeline.Open(s, sctx, start)
	if tracked && s.DayCursor {
		run.OnPageDone(func(c Cursor) {
			if day, ok := c.Date(); ok {
				d.bookmarks.Advance(s.Name, sctx, Bookmark{ReplicationKey: s.ReplicationKey, Value: day.Format(config.DateLayout)}, true)
			}
		})
	}

	defer func() {
		d.summary.PagesFetched += run.Pages()
		d.summary.RecordsDropped += run.Dropped()
	}()

	children := d.graph.Children(s)

	for rec, recErr := range run.Records(ctx) {
		if recErr != nil {
			return recErr
		}

		if selected {
			if err := d.emit(ctx, rec); err != nil {
				return err
			}
			if tracked && !s.DayCursor {
				if v, ok := rec.Data[s.ReplicationKey]; ok && v != nil {
					d.bookmarks.Advance(s.Name, sctx, Bookmark{ReplicationKey: s.ReplicationKey, Value: v}, s.IsSorted)
				}
			}
		}

		if len(children) == 0 {
			continue
		}
		childCtx, ctxErr := s.ChildContext(rec.Data, sctx)
		if ctxErr != nil {
			d.logger.Warn("cannot derive child context, skipping children of record",
				zap.String("stream", s.Name),
				zap.Any("context_values", sctx.Values()),
				zap.Error(ctxErr))
			continue
		}
		for _, child := range children {
			if err := d.drive(ctx, child, childCtx); err != nil {
				return err
			}
		}
	}

	switch run.State() {
	case StateCompleted:
		d.summary.ContextsCompleted++
	case StateSkipped:
		d.summary.ContextsSkipped++
	default:
		return errors.Newf(errors.ErrorTypeInternal, "context of %s ended in state %s", s.Name, run.State())
	}

	if !tracked {
		return nil
	}

	var cursor *Bookmark
	if s.DayCursor && run.Attempted() {
		if day, ok := run.Cursor().Date(); ok {
			cursor = &Bookmark{ReplicationKey: s.ReplicationKey, Value: day.Format(config.DateLayout)}
		}
	}
	d.bookmarks.Finalize(s.Name, sctx, cursor)
	metrics.BookmarksFinalized.WithLabelValues(s.Name).Inc()

	return d.checkpoint(ctx)
}

func (d *Driver) emit(ctx context.Context, rec *Record) error {
	msg := core.NewRecordMessage(rec.Stream, rec.Data, rec.ExtractedAt)
	if err := d.dest.WriteRecord(ctx, msg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "write record of "+rec.Stream)
	}
	d.summary.RecordsEmitted++
	metrics.RecordsEmitted.WithLabelValues(rec.Stream).Inc()
	return nil
}

// checkpoint hands the STATE message to the destination and persists the
// bookmarks only once the destination accepted it.
func (d *Driver) checkpoint(ctx context.Context) error {
	if err := d.dest.WriteState(ctx, core.NewStateMessage(d.bookmarks.Snapshot())); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "write state")
	}
	return d.bookmarks.Checkpoint(ctx)
}
