package rest

import (
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

// Graph is the validated parent/child tree of streams.
type Graph struct {
	streams  []*Stream
	byName   map[string]*Stream
	children map[*Stream][]*Stream
	selected map[*Stream]bool
}

// NewGraph validates streams and builds the graph. Streams keep their
// declaration order for traversal.
func NewGraph(streams ...*Stream) (*Graph, error) {
	g := &Graph{
		byName:   make(map[string]*Stream, len(streams)),
		children: make(map[*Stream][]*Stream),
	}

	for _, s := range streams {
		if s.Name == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "stream without a name")
		}
		if _, dup := g.byName[s.Name]; dup {
			return nil, errors.Newf(errors.ErrorTypeConfig, "duplicate stream %q", s.Name)
		}
		if s.Path == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig, "stream %q has no path", s.Name)
		}
		if len(s.Selection) > 0 && s.NaturalKey == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig, "stream %q has a selection but no natural key", s.Name)
		}
		if err := s.compile(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid records path for stream "+s.Name)
		}
		g.byName[s.Name] = s
		g.streams = append(g.streams, s)
	}

	for _, s := range g.streams {
		if s.Parent == nil {
			continue
		}
		if g.byName[s.Parent.Name] != s.Parent {
			return nil, errors.Newf(errors.ErrorTypeConfig, "stream %q has unregistered parent %q", s.Name, s.Parent.Name)
		}
		if s.Parent.ChildContext == nil {
			return nil, errors.Newf(errors.ErrorTypeConfig, "stream %q has children but no child context", s.Parent.Name)
		}
		depth := 0
		for p := s.Parent; p != nil; p = p.Parent {
			if p == s || depth > len(g.streams) {
				return nil, errors.Newf(errors.ErrorTypeConfig, "stream %q has a cyclic parent chain", s.Name)
			}
			depth++
		}
		g.children[s.Parent] = append(g.children[s.Parent], s)
	}

	return g, nil
}

// Select restricts emission to the named streams. An empty list selects all.
func (g *Graph) Select(names []string) error {
	if len(names) == 0 {
		g.selected = nil
		return nil
	}
	selected := make(map[*Stream]bool, len(names))
	for _, name := range names {
		s, ok := g.byName[name]
		if !ok {
			return errors.Newf(errors.ErrorTypeConfig, "unknown stream %q", name).WithDetail("field", "streams")
		}
		selected[s] = true
	}
	g.selected = selected
	return nil
}

// Selected reports whether the records of s are emitted.
func (g *Graph) Selected(s *Stream) bool {
	return g.selected == nil || g.selected[s]
}

// Needed reports whether s must be traversed: it is selected or one of its
// descendants is.
func (g *Graph) Needed(s *Stream) bool {
	if g.Selected(s) {
		return true
	}
	for _, c := range g.children[s] {
		if g.Needed(c) {
			return true
		}
	}
	return false
}

// Roots returns the top-level streams that need traversal.
func (g *Graph) Roots() []*Stream {
	var roots []*Stream
	for _, s := range g.streams {
		if s.Parent == nil && g.Needed(s) {
			roots = append(roots, s)
		}
	}
	return roots
}

// Children returns the child streams of s that need traversal.
func (g *Graph) Children(s *Stream) []*Stream {
	var out []*Stream
	for _, c := range g.children[s] {
		if g.Needed(c) {
			out = append(out, c)
		}
	}
	return out
}

// Streams returns every stream in declaration order.
func (g *Graph) Streams() []*Stream {
	return append([]*Stream(nil), g.streams...)
}

// Stream looks a stream up by name.
func (g *Graph) Stream(name string) (*Stream, bool) {
	s, ok := g.byName[name]
	return s, ok
}
