package rest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/taboola-tap/pkg/connector/rest"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

func family() (*rest.Stream, *rest.Stream, *rest.Stream) {
	accounts := &rest.Stream{Name: "accounts", Path: "/accounts", ChildContext: accountContext}
	campaigns := &rest.Stream{Name: "campaigns", Path: "/{account_id}/campaigns", Parent: accounts}
	report := &rest.Stream{Name: "report", Path: "/{account_id}/report", Parent: accounts}
	return accounts, campaigns, report
}

func TestGraphValidation(t *testing.T) {
	accounts, campaigns, _ := family()

	_, err := rest.NewGraph(accounts, &rest.Stream{Name: "accounts", Path: "/x"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = rest.NewGraph(campaigns)
	assert.ErrorContains(t, err, "unregistered parent")

	orphanParent := &rest.Stream{Name: "parent", Path: "/p"}
	_, err = rest.NewGraph(orphanParent, &rest.Stream{Name: "child", Path: "/c", Parent: orphanParent})
	assert.ErrorContains(t, err, "no child context")

	_, err = rest.NewGraph(&rest.Stream{Name: "bad", Path: "/b", RecordsPath: "$.[[["})
	assert.Error(t, err)

	_, err = rest.NewGraph(&rest.Stream{Name: "nopath"})
	assert.Error(t, err)

	_, err = rest.NewGraph(&rest.Stream{Name: "accounts", Path: "/accounts", Selection: []string{"A"}})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.ErrorContains(t, err, "no natural key")
}

func TestGraphRejectsCycles(t *testing.T) {
	a := &rest.Stream{Name: "a", Path: "/a", ChildContext: accountContext}
	b := &rest.Stream{Name: "b", Path: "/b", Parent: a, ChildContext: accountContext}
	a.Parent = b

	_, err := rest.NewGraph(a, b)
	assert.ErrorContains(t, err, "cyclic")
}

func TestGraphSelection(t *testing.T) {
	accounts, campaigns, report := family()
	g, err := rest.NewGraph(accounts, campaigns, report)
	require.NoError(t, err)

	assert.Equal(t, []*rest.Stream{accounts}, g.Roots())
	assert.Equal(t, []*rest.Stream{campaigns, report}, g.Children(accounts))
	assert.True(t, g.Selected(accounts))

	require.NoError(t, g.Select([]string{"report"}))
	assert.False(t, g.Selected(accounts))
	assert.True(t, g.Needed(accounts))
	assert.Equal(t, []*rest.Stream{accounts}, g.Roots())
	assert.Equal(t, []*rest.Stream{report}, g.Children(accounts))

	err = g.Select([]string{"nope"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	s, ok := g.Stream("campaigns")
	require.True(t, ok)
	assert.Equal(t, "accounts", s.ParentName())
	assert.Len(t, g.Streams(), 3)
}
