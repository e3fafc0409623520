package rest

import (
	"context"
	"net/url"

	"github.com/ohler55/ojg/jp"

	"github.com/ajitpratap0/taboola-tap/pkg/errors"
	jsonpool "github.com/ajitpratap0/taboola-tap/pkg/json"
)

const (
	// DefaultRecordsPath selects the results array of the top-level object
	DefaultRecordsPath = "$.results[*]"
	// NextPagePath locates the next page token when present
	NextPagePath = "$.next_page"
)

var nextPageExpr = jp.MustParseString(NextPagePath)

// Transport performs API requests for the engine. Implementations return
// an error carrying the response status for non-success outcomes.
type Transport interface {
	Request(ctx context.Context, path string, query url.Values, sctx Context) (*RawPage, error)
}

// RawPage is an undecoded response body.
type RawPage struct {
	StatusCode int
	Body       []byte
}

// Page is a decoded response with its extracted records.
type Page struct {
	Body          interface{}
	Records       []map[string]interface{}
	NextPageToken interface{}
	Cursor        Cursor
}

// ExtractPage decodes raw and selects records with expr. Numbers in the body
// are decoded as decimals. A body that is not valid JSON, or a selected
// record that is not an object, is a data error.
func ExtractPage(raw *RawPage, expr jp.Expr, cursor Cursor) (*Page, error) {
	body, err := jsonpool.DecodeBytes(raw.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "malformed page body")
	}

	page := &Page{Body: body, Cursor: cursor}

	for _, item := range expr.Get(body) {
		rec, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeData, "record is a %T, not an object", item).
				WithDetail("path", expr.String())
		}
		page.Records = append(page.Records, rec)
	}

	if tokens := nextPageExpr.Get(body); len(tokens) > 0 {
		page.NextPageToken = tokens[0]
	}

	return page, nil
}
