package rest

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

// Cursor marks where fetching resumes within a context: nothing, a
// calendar day or a next-page token. The zero value means no cursor.
type Cursor struct {
	date  time.Time
	set   bool
	token interface{}
}

// NoCursor is the cursor of endpoints without pagination state.
func NoCursor() Cursor {
	return Cursor{}
}

// DateCursor returns a cursor for the UTC calendar day containing t.
func DateCursor(t time.Time) Cursor {
	return Cursor{date: UTCDay(t), set: true}
}

// TokenCursor returns a cursor holding the next-page token v.
func TokenCursor(v interface{}) Cursor {
	return Cursor{token: v}
}

// Token returns the next-page token, if any.
func (c Cursor) Token() (interface{}, bool) {
	return c.token, c.token != nil
}

// Date returns the cursor day, if any.
func (c Cursor) Date() (time.Time, bool) {
	return c.date, c.set
}

// IsZero reports whether c carries no position.
func (c Cursor) IsZero() bool {
	return !c.set && c.token == nil
}

func (c Cursor) String() string {
	switch {
	case c.set:
		return c.date.Format(config.DateLayout)
	case c.token != nil:
		return "page " + fmt.Sprint(c.token)
	default:
		return "none"
	}
}

// UTCDay truncates t to midnight UTC of its calendar day.
func UTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Paginator decides page by page whether a context has more data.
type Paginator interface {
	// Begin returns the first cursor, or false when no page should be fetched
	Begin() (Cursor, bool)
	// HasMore reports whether another page follows last
	HasMore(last *Page) bool
	// Next advances past last and returns the new cursor
	Next(last *Page) Cursor
	// ContinueOnEmpty reports whether an empty page keeps pagination going
	ContinueOnEmpty() bool
}

// SinglePagePaginator fetches exactly one page.
type SinglePagePaginator struct{}

func (SinglePagePaginator) Begin() (Cursor, bool) { return NoCursor(), true }

func (SinglePagePaginator) HasMore(*Page) bool { return false }

func (SinglePagePaginator) Next(*Page) Cursor { return NoCursor() }

func (SinglePagePaginator) ContinueOnEmpty() bool { return false }

// NextPagePaginator follows the next-page token of each response until a
// page has none or returns a token that was already followed.
type NextPagePaginator struct {
	seen map[string]struct{}
}

func (p *NextPagePaginator) Begin() (Cursor, bool) { return NoCursor(), true }

func (p *NextPagePaginator) HasMore(last *Page) bool {
	if last.NextPageToken == nil {
		return false
	}
	token := fmt.Sprint(last.NextPageToken)
	if token == "" {
		return false
	}
	_, repeated := p.seen[token]
	return !repeated
}

func (p *NextPagePaginator) Next(last *Page) Cursor {
	if p.seen == nil {
		p.seen = make(map[string]struct{})
	}
	p.seen[fmt.Sprint(last.NextPageToken)] = struct{}{}
	return TokenCursor(last.NextPageToken)
}

func (p *NextPagePaginator) ContinueOnEmpty() bool { return false }

// DayPaginator walks calendar days from a start date up to and including
// today in UTC. Empty days do not stop pagination.
type DayPaginator struct {
	current time.Time
	now     func() time.Time
}

// NewDayPaginator creates a day paginator starting at the day of start.
// now defaults to time.Now.
func NewDayPaginator(start time.Time, now func() time.Time) *DayPaginator {
	if now == nil {
		now = time.Now
	}
	return &DayPaginator{current: UTCDay(start), now: now}
}

func (p *DayPaginator) today() time.Time {
	return UTCDay(p.now())
}

// Begin returns the start day, or false when it lies after today.
func (p *DayPaginator) Begin() (Cursor, bool) {
	if p.current.After(p.today()) {
		return NoCursor(), false
	}
	return DateCursor(p.current), true
}

// HasMore is true while the current day is strictly before today.
func (p *DayPaginator) HasMore(*Page) bool {
	return p.current.Before(p.today())
}

// Next advances exactly one calendar day.
func (p *DayPaginator) Next(*Page) Cursor {
	p.current = p.current.AddDate(0, 0, 1)
	return DateCursor(p.current)
}

// ContinueOnEmpty is always true; the day boundary ends pagination.
func (p *DayPaginator) ContinueOnEmpty() bool { return true }

// Start describes where a context's extraction begins.
type Start struct {
	// Bookmark is the committed replication value, if HasBookmark
	Bookmark    interface{}
	HasBookmark bool
	// Default is the run start date used without a bookmark
	Default time.Time
}

// PaginatorFactory builds the paginator for one context.
type PaginatorFactory func(start Start) (Paginator, error)

// SinglePage is the PaginatorFactory of unpaginated endpoints.
func SinglePage(Start) (Paginator, error) {
	return SinglePagePaginator{}, nil
}

// NextPages is the PaginatorFactory of endpoints paged by a next-page token.
func NextPages(Start) (Paginator, error) {
	return &NextPagePaginator{}, nil
}

// DayPages returns a factory that resumes the day after the bookmarked day,
// or at the default start date when there is no bookmark.
func DayPages(now func() time.Time) PaginatorFactory {
	return func(start Start) (Paginator, error) {
		if !start.HasBookmark {
			return NewDayPaginator(start.Default, now), nil
		}
		day, err := ParseDay(start.Bookmark)
		if err != nil {
			return nil, err
		}
		return NewDayPaginator(day.AddDate(0, 0, 1), now), nil
	}
}

// ParseDay reads a bookmark value as a UTC calendar day.
func ParseDay(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return UTCDay(t), nil
	case string:
		for _, layout := range []string{config.DateLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return UTCDay(parsed), nil
			}
		}
	}
	return time.Time{}, errors.Newf(errors.ErrorTypeState, "bookmark %v is not a date", v)
}
