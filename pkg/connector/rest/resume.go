package rest

import (
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

// FetchStatus tags the outcome of fetching one page.
type FetchStatus int

const (
	// FetchOK carries a page
	FetchOK FetchStatus = iota
	// FetchContextNotFound ends the context without failing the run
	FetchContextNotFound
	// FetchFatal aborts the run
	FetchFatal
)

func (s FetchStatus) String() string {
	switch s {
	case FetchOK:
		return "ok"
	case FetchContextNotFound:
		return "context_not_found"
	default:
		return "fatal"
	}
}

// FetchResult is the tagged result of a page fetch.
type FetchResult struct {
	Status FetchStatus
	Page   *Page
	Err    error
}

// ResumePolicy classifies a failed fetch as context-skippable or fatal.
type ResumePolicy interface {
	Classify(err error) FetchStatus
}

// FatalPolicy treats every failure as fatal.
type FatalPolicy struct{}

// Classify always returns FetchFatal
func (FatalPolicy) Classify(error) FetchStatus { return FetchFatal }

// SkipOnStatus skips the context when the response status is one of Statuses.
type SkipOnStatus struct {
	Statuses []int
}

// SkipContextOnStatus builds a SkipOnStatus policy.
func SkipContextOnStatus(statuses ...int) SkipOnStatus {
	return SkipOnStatus{Statuses: statuses}
}

// Classify checks err's HTTP status against the skippable set.
func (p SkipOnStatus) Classify(err error) FetchStatus {
	code, ok := errors.StatusCode(err)
	if !ok {
		return FetchFatal
	}
	for _, s := range p.Statuses {
		if s == code {
			return FetchContextNotFound
		}
	}
	return FetchFatal
}

// ContextState is the extraction state of one (stream, context).
type ContextState int

const (
	StatePending ContextState = iota
	StateFetching
	StateEmittingPage
	StateSkipped
	StateCompleted
	StateFatal
)

func (s ContextState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetching:
		return "fetching"
	case StateEmittingPage:
		return "emitting_page"
	case StateSkipped:
		return "skipped"
	case StateCompleted:
		return "completed"
	case StateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Finished reports whether the state finalizes the bookmark.
func (s ContextState) Finished() bool {
	return s == StateSkipped || s == StateCompleted
}
