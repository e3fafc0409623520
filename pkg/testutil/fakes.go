package testutil

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/rest"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

// Response is a canned transport response.
type Response struct {
	Status int
	Body   string
}

// OK wraps body in a 200 response.
func OK(body string) Response {
	return Response{Status: http.StatusOK, Body: body}
}

// Status returns an empty response with the given status code.
func Status(code int) Response {
	return Response{Status: code}
}

// Call records one transport request.
type Call struct {
	Path  string
	Query url.Values
}

// FakeTransport serves canned responses keyed by resolved request path.
// Unknown paths fail with a 500.
type FakeTransport struct {
	mu     sync.Mutex
	routes map[string]func(query url.Values) Response
	calls  []Call
}

// NewFakeTransport creates an empty fake.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{routes: make(map[string]func(url.Values) Response)}
}

// Handle registers fn for path.
func (f *FakeTransport) Handle(path string, fn func(query url.Values) Response) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = fn
	return f
}

// Serve registers a fixed response for path.
func (f *FakeTransport) Serve(path string, resp Response) *FakeTransport {
	return f.Handle(path, func(url.Values) Response { return resp })
}

// Request implements rest.Transport.
func (f *FakeTransport) Request(ctx context.Context, path string, query url.Values, _ rest.Context) (*rest.RawPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, Call{Path: path, Query: query})
	fn, ok := f.routes[path]
	f.mu.Unlock()

	resp := Response{Status: http.StatusInternalServerError, Body: "no route"}
	if ok {
		resp = fn(query)
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	if resp.Status < 200 || resp.Status > 299 {
		return nil, &errors.HTTPError{StatusCode: resp.Status, Method: http.MethodGet, URL: path, Body: resp.Body}
	}
	return &rest.RawPage{StatusCode: resp.Status, Body: []byte(resp.Body)}, nil
}

// Calls returns the requests made so far.
func (f *FakeTransport) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// MemoryDestination collects messages in memory.
type MemoryDestination struct {
	mu      sync.Mutex
	Records []core.RecordMessage
	States  []core.StateMessage
	Closed  bool
	// FailRecords makes WriteRecord fail
	FailRecords error
	// FailStates makes WriteState fail
	FailStates error
}

// WriteRecord implements core.Destination.
func (d *MemoryDestination) WriteRecord(_ context.Context, msg core.RecordMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailRecords != nil {
		return d.FailRecords
	}
	d.Records = append(d.Records, msg)
	return nil
}

// WriteState implements core.Destination.
func (d *MemoryDestination) WriteState(_ context.Context, msg core.StateMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailStates != nil {
		return d.FailStates
	}
	d.States = append(d.States, msg)
	return nil
}

// Close implements core.Destination.
func (d *MemoryDestination) Close(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

// StreamRecords returns the records emitted for stream.
func (d *MemoryDestination) StreamRecords(stream string) []map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []map[string]interface{}
	for _, r := range d.Records {
		if r.Stream == stream {
			out = append(out, r.Record)
		}
	}
	return out
}

// MemoryBackend is an in-memory state backend.
type MemoryBackend struct {
	mu    sync.Mutex
	Data  []byte
	Saves int
}

// Load implements core.StateBackend.
func (b *MemoryBackend) Load(context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Data == nil {
		return nil, nil
	}
	return append([]byte(nil), b.Data...), nil
}

// Save implements core.StateBackend.
func (b *MemoryBackend) Save(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Data = append([]byte(nil), data...)
	b.Saves++
	return nil
}

// Close implements core.StateBackend.
func (b *MemoryBackend) Close() error { return nil }
