// Package rest is the incremental extraction engine for paginated REST APIs.
//
// Streams are declared as a tree with NewGraph. A Driver walks the tree
// depth-first: each parent record yields a Context for its children, and
// every (stream, context) is extracted by a Pipeline run whose records are
// produced lazily, one page at a time. Page fetch failures are classified by
// the stream's ResumePolicy into a context skip or a fatal error.
//
// Bookmarks advance while records are emitted and are only committed when a
// context completes or is skipped. Committed bookmarks are checkpointed and
// announced with a STATE message after every finished context.
package rest
