package taboola

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/rest"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

// Stream names.
const (
	StreamAccounts          = "accounts"
	StreamCampaigns         = "campaigns"
	StreamCampaignItems     = "campaign_items"
	StreamCampaignDayReport = "campaign_day_report"
)

// utcDateTimeFields carry a redundant ".0" fraction in API responses.
var utcDateTimeFields = []string{"start_date_in_utc", "end_date_in_utc"}

// StreamOptions parameterize the stream definitions.
type StreamOptions struct {
	// AccountIDs restricts the accounts stream
	AccountIDs []string
	// Now is the clock used to bound day reports
	Now func() time.Time
}

// Streams returns the Backstage stream tree in traversal order.
func Streams(opts StreamOptions) []*rest.Stream {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	accounts := &rest.Stream{
		Name:         StreamAccounts,
		Path:         "/users/current/allowed-accounts",
		PrimaryKeys:  []string{"id"},
		NaturalKey:   "account_id",
		Selection:    opts.AccountIDs,
		Paginator:    rest.NextPages,
		ChildContext: accountContext,
	}

	campaigns := &rest.Stream{
		Name:         StreamCampaigns,
		Parent:       accounts,
		Path:         "/{account_id}/campaigns",
		PrimaryKeys:  []string{"id", "advertiser_id"},
		Paginator:    rest.NextPages,
		Resume:       rest.SkipContextOnStatus(http.StatusNotFound),
		PostProcess:  normalizeCampaign,
		ChildContext: campaignContext,
	}

	campaignItems := &rest.Stream{
		Name:        StreamCampaignItems,
		Parent:      campaigns,
		Path:        "/{account_id}/campaigns/{campaign_id}/items",
		PrimaryKeys: []string{"id"},
		Paginator:   rest.NextPages,
		Resume:      rest.SkipContextOnStatus(http.StatusNotFound),
	}

	campaignDayReport := &rest.Stream{
		Name:           StreamCampaignDayReport,
		Parent:         accounts,
		Path:           "/{account_id}/reports/campaign-summary/dimensions/campaign_breakdown",
		PrimaryKeys:    []string{"campaign", "date"},
		ReplicationKey: "date",
		IsSorted:       true,
		DayCursor:      true,
		CursorField:    "date",
		Paginator:      rest.DayPages(opts.Now),
		Resume:         rest.SkipContextOnStatus(http.StatusNotFound),
		Params:         reportParams,
	}

	return []*rest.Stream{accounts, campaigns, campaignItems, campaignDayReport}
}

func accountContext(rec map[string]interface{}, parent rest.Context) (rest.Context, error) {
	id, ok := rec["account_id"]
	if !ok || id == nil {
		return rest.Context{}, errors.New(errors.ErrorTypeData, "account record has no account_id")
	}
	return parent.With(map[string]interface{}{"account_id": id}), nil
}

func campaignContext(rec map[string]interface{}, parent rest.Context) (rest.Context, error) {
	id, ok := rec["id"]
	if !ok || id == nil {
		return rest.Context{}, errors.New(errors.ErrorTypeData, "campaign record has no id")
	}
	return parent.With(map[string]interface{}{"campaign_id": id}), nil
}

func normalizeCampaign(rec map[string]interface{}, _ rest.Context) (map[string]interface{}, bool) {
	for _, field := range utcDateTimeFields {
		if s, ok := rec[field].(string); ok {
			rec[field] = strings.TrimSuffix(s, ".0")
		}
	}
	return rec, true
}

func reportParams(_ rest.Context, cursor rest.Cursor) url.Values {
	q := url.Values{}
	if day, ok := cursor.Date(); ok {
		d := day.Format(config.DateLayout)
		q.Set("start_date", d)
		q.Set("end_date", d)
	}
	return q
}
