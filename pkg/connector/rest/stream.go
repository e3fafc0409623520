package rest

import (
	"fmt"
	"net/url"

	"github.com/ohler55/ojg/jp"
)

// Stream describes one API resource. Strategies are plugged in as fields;
// nil strategies fall back to a single page, fatal failures and no
// post-processing.
type Stream struct {
	Name        string
	PrimaryKeys []string
	// ReplicationKey is the field tracked by the bookmark; empty for full syncs
	ReplicationKey string
	// Parent owns this stream; contexts come from the parent's records
	Parent *Stream
	// Path is the request path template, e.g. /{account_id}/campaigns
	Path string
	// IsSorted means records arrive in non-decreasing replication key order
	IsSorted bool
	// DayCursor streams bookmark the pagination day instead of record values
	DayCursor bool
	// RecordsPath is a JSONPath selecting records from the page body
	RecordsPath string
	// NaturalKey is the identifying field; records where it is null are dropped
	NaturalKey string
	// Selection is an allow-list of natural key values; empty keeps all records
	Selection []string
	// CursorField is stamped with the cursor day on every record
	CursorField string

	Paginator    PaginatorFactory
	Resume       ResumePolicy
	Params       func(sctx Context, cursor Cursor) url.Values
	PostProcess  func(rec map[string]interface{}, sctx Context) (map[string]interface{}, bool)
	ChildContext func(rec map[string]interface{}, parent Context) (Context, error)

	recordsExpr jp.Expr
}

// ParentName returns the parent's name or the empty string.
func (s *Stream) ParentName() string {
	if s.Parent == nil {
		return ""
	}
	return s.Parent.Name
}

// Incremental reports whether the stream keeps a bookmark.
func (s *Stream) Incremental() bool {
	return s.ReplicationKey != ""
}

func (s *Stream) newPaginator(start Start) (Paginator, error) {
	if s.Paginator == nil {
		return SinglePagePaginator{}, nil
	}
	return s.Paginator(start)
}

func (s *Stream) resumePolicy() ResumePolicy {
	if s.Resume == nil {
		return FatalPolicy{}
	}
	return s.Resume
}

// params builds the query of one request. A next-page token is sent as
// page; record-level incremental streams ask for ascending replication key
// order.
func (s *Stream) params(sctx Context, cursor Cursor) url.Values {
	q := url.Values{}
	if s.Params != nil {
		if custom := s.Params(sctx, cursor); custom != nil {
			q = custom
		}
	}
	if token, ok := cursor.Token(); ok {
		q.Set("page", fmt.Sprint(token))
	}
	if s.Incremental() && !s.DayCursor {
		q.Set("sort", "asc")
		q.Set("order_by", s.ReplicationKey)
	}
	return q
}

func (s *Stream) compile() error {
	path := s.RecordsPath
	if path == "" {
		path = DefaultRecordsPath
	}
	expr, err := jp.ParseString(path)
	if err != nil {
		return err
	}
	s.recordsExpr = expr
	return nil
}
