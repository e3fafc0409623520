package rest

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"

	"github.com/ajitpratap0/taboola-tap/pkg/errors"
	jsonpool "github.com/ajitpratap0/taboola-tap/pkg/json"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Context is the immutable key/value bag that parameterizes a stream's
// request path and identifies its bookmark. Child contexts are built from
// their parent with With.
type Context struct {
	values map[string]interface{}
}

// EmptyContext is the context of top-level streams.
func EmptyContext() Context {
	return Context{}
}

// NewContext copies values into a new context.
func NewContext(values map[string]interface{}) Context {
	return EmptyContext().With(values)
}

// With returns a new context holding c's values overlaid with values.
func (c Context) With(values map[string]interface{}) Context {
	merged := make(map[string]interface{}, len(c.values)+len(values))
	for k, v := range c.values {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}
	return Context{values: merged}
}

// Get returns the value stored under key.
func (c Context) Get(key string) (interface{}, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Len returns the number of keys.
func (c Context) Len() int {
	return len(c.values)
}

// Keys returns the sorted context keys.
func (c Context) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy of the context as a map.
func (c Context) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Signature is the canonical JSON encoding of the context with sorted keys.
// Equal contexts always produce equal signatures.
func (c Context) Signature() string {
	if len(c.values) == 0 {
		return "{}"
	}
	data, err := jsonpool.Marshal(c.values)
	if err != nil {
		return fmt.Sprintf("%v", c.values)
	}
	return string(data)
}

func (c Context) String() string {
	return c.Signature()
}

// Resolve fills every {key} placeholder in template from the context.
func (c Context) Resolve(template string) (string, error) {
	var missing []string
	resolved := placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := c.values[key]
		if !ok || v == nil {
			missing = append(missing, key)
			return m
		}
		return url.PathEscape(fmt.Sprint(v))
	})
	if len(missing) > 0 {
		return "", errors.Newf(errors.ErrorTypeValidation, "context %s has no value for %v", c.Signature(), missing).
			WithDetail("template", template)
	}
	return resolved, nil
}

// Placeholders lists the context keys referenced by template.
func Placeholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, m[1])
	}
	return keys
}
