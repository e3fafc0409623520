package rest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/taboola-tap/pkg/connector/rest"
	"github.com/ajitpratap0/taboola-tap/pkg/testutil"
)

// days drains p, treating every page as empty.
func days(p rest.Paginator) []string {
	var out []string
	cursor, ok := p.Begin()
	if !ok {
		return out
	}
	for {
		out = append(out, cursor.String())
		page := &rest.Page{Cursor: cursor}
		if !p.ContinueOnEmpty() || !p.HasMore(page) {
			return out
		}
		cursor = p.Next(page)
	}
}

func TestDayPaginatorIsContiguous(t *testing.T) {
	now := testutil.FixedClock(time.Date(2024, 3, 2, 18, 30, 0, 0, time.UTC))
	p := rest.NewDayPaginator(testutil.Day(t, "2024-02-27"), now)

	assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01", "2024-03-02"}, days(p))
}

func TestDayPaginatorBounds(t *testing.T) {
	now := testutil.FixedClock(time.Date(2024, 3, 2, 0, 0, 1, 0, time.UTC))

	assert.Equal(t, []string{"2024-03-02"}, days(rest.NewDayPaginator(testutil.Day(t, "2024-03-02"), now)))
	assert.Empty(t, days(rest.NewDayPaginator(testutil.Day(t, "2024-03-03"), now)))
}

func TestDayPaginatorUsesUTC(t *testing.T) {
	// 23:00 on March 1st in UTC-5 is already March 2nd in UTC
	loc := time.FixedZone("EST", -5*3600)
	now := testutil.FixedClock(time.Date(2024, 3, 1, 23, 0, 0, 0, loc))
	p := rest.NewDayPaginator(testutil.Day(t, "2024-03-01"), now)

	assert.Equal(t, []string{"2024-03-01", "2024-03-02"}, days(p))
}

func TestDayPagesResumesAfterBookmark(t *testing.T) {
	now := testutil.FixedClock(time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC))
	factory := rest.DayPages(now)

	p, err := factory(rest.Start{Bookmark: "2024-03-03", HasBookmark: true, Default: testutil.Day(t, "2024-01-01")})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-04", "2024-03-05"}, days(p))

	p, err = factory(rest.Start{Bookmark: "2024-03-05", HasBookmark: true})
	require.NoError(t, err)
	assert.Empty(t, days(p))

	p, err = factory(rest.Start{Default: testutil.Day(t, "2024-03-04")})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-04", "2024-03-05"}, days(p))

	_, err = factory(rest.Start{Bookmark: "yesterday", HasBookmark: true})
	assert.Error(t, err)
}

func TestSinglePage(t *testing.T) {
	p, err := rest.SinglePage(rest.Start{})
	require.NoError(t, err)
	assert.Equal(t, []string{"none"}, days(p))
}

func TestNextPagePaginatorStopsOnRepeatedToken(t *testing.T) {
	p, err := rest.NextPages(rest.Start{})
	require.NoError(t, err)

	cursor, ok := p.Begin()
	require.True(t, ok)
	assert.True(t, cursor.IsZero())

	first := &rest.Page{NextPageToken: "abc"}
	require.True(t, p.HasMore(first))
	cursor = p.Next(first)
	token, ok := cursor.Token()
	require.True(t, ok)
	assert.Equal(t, "abc", token)

	assert.False(t, p.HasMore(&rest.Page{NextPageToken: "abc"}), "same token again")
	assert.False(t, p.HasMore(&rest.Page{}), "no token")
	assert.False(t, p.ContinueOnEmpty())
}

func TestNextPagePaginatorStopsOnTokenCycle(t *testing.T) {
	p, err := rest.NextPages(rest.Start{})
	require.NoError(t, err)
	_, ok := p.Begin()
	require.True(t, ok)

	for _, token := range []string{"a", "b"} {
		page := &rest.Page{NextPageToken: token}
		require.True(t, p.HasMore(page))
		p.Next(page)
	}
	assert.False(t, p.HasMore(&rest.Page{NextPageToken: "a"}))
	assert.True(t, p.HasMore(&rest.Page{NextPageToken: "c"}))
}
