package rest

import "context"

// Bookmark is the replication position of one (stream, context).
type Bookmark struct {
	ReplicationKey string
	Value          interface{}
}

// Bookmarks tracks replication positions during a run. Advanced values stay
// pending until Finalize; only finalized values are ever persisted.
type Bookmarks interface {
	// Get returns the committed bookmark loaded at the start of the run or
	// finalized since.
	Get(stream string, sctx Context) (Bookmark, bool)
	// Advance raises the pending value. Lower or equal values are ignored
	// unless trusted, which writes unconditionally.
	Advance(stream string, sctx Context, b Bookmark, trusted bool)
	// Finalize commits the pending value, or cursor when given. A committed
	// value never moves backwards.
	Finalize(stream string, sctx Context, cursor *Bookmark)
	// Snapshot returns the committed document for STATE messages.
	Snapshot() interface{}
	// Checkpoint persists the committed document.
	Checkpoint(ctx context.Context) error
}
