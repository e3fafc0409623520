package rest_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/taboola-tap/pkg/connector/rest"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

func TestContextWithIsImmutable(t *testing.T) {
	parent := rest.NewContext(map[string]interface{}{"account_id": "acme"})
	child := parent.With(map[string]interface{}{"campaign_id": "42"})

	_, ok := parent.Get("campaign_id")
	assert.False(t, ok)
	assert.Equal(t, 1, parent.Len())
	assert.Equal(t, []string{"account_id", "campaign_id"}, child.Keys())

	values := child.Values()
	values["account_id"] = "other"
	v, _ := child.Get("account_id")
	assert.Equal(t, "acme", v)
}

func TestContextSignature(t *testing.T) {
	assert.Equal(t, "{}", rest.EmptyContext().Signature())

	a := rest.NewContext(map[string]interface{}{"b": "2", "a": "1"})
	b := rest.NewContext(map[string]interface{}{"a": "1"}).With(map[string]interface{}{"b": "2"})
	assert.Equal(t, `{"a":"1","b":"2"}`, a.Signature())
	assert.Equal(t, a.Signature(), b.Signature())

	n := rest.NewContext(map[string]interface{}{"id": decimal.NewFromInt(7)})
	assert.Equal(t, `{"id":7}`, n.Signature())
}

func TestContextResolve(t *testing.T) {
	sctx := rest.NewContext(map[string]interface{}{"account_id": "acme co", "campaign_id": decimal.NewFromInt(42)})

	path, err := sctx.Resolve("/{account_id}/campaigns/{campaign_id}/items")
	require.NoError(t, err)
	assert.Equal(t, "/acme%20co/campaigns/42/items", path)

	_, err = rest.EmptyContext().Resolve("/{account_id}/campaigns")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	assert.Equal(t, []string{"account_id", "campaign_id"}, rest.Placeholders("/{account_id}/x/{campaign_id}"))
}
