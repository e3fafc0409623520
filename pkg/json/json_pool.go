// Package json provides JSON decoding and encoding for API pages, records and
// state documents. Numbers are decoded as arbitrary-precision decimals.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

func init() {
	// Decimals render as JSON numbers rather than quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// Decode reads a single JSON value from r. Every number in the value is
// returned as a decimal.Decimal so no precision is lost.
func Decode(r io.Reader) (interface{}, error) {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return Normalize(v)
}

// DecodeBytes is Decode over an in-memory document.
func DecodeBytes(data []byte) (interface{}, error) {
	return Decode(bytes.NewReader(data))
}

// Normalize walks a decoded value and converts json numbers to decimals.
func Normalize(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case gojson.Number:
		return decimal.NewFromString(string(t))
	case map[string]interface{}:
		for k, item := range t {
			n, err := Normalize(item)
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
		return t, nil
	case []interface{}:
		for i, item := range t {
			n, err := Normalize(item)
			if err != nil {
				return nil, err
			}
			t[i] = n
		}
		return t, nil
	default:
		return v, nil
	}
}

// UnmarshalNumbers decodes data into v keeping numbers as json.Number so
// they can be passed to Normalize.
func UnmarshalNumbers(data []byte, v interface{}) error {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// Marshal is a drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent is a drop-in replacement for json.MarshalIndent
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// LineEncoder writes one JSON document per line.
type LineEncoder struct {
	mu  sync.Mutex
	w   io.Writer
	enc *gojson.Encoder
}

// NewLineEncoder creates a line-delimited encoder over w
func NewLineEncoder(w io.Writer) *LineEncoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &LineEncoder{w: w, enc: enc}
}

// Encode writes v followed by a newline
func (e *LineEncoder) Encode(v interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(v)
}
