// Package errors provides examples of structured error handling in the tap.
package errors_test

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

// Example demonstrates basic error creation and wrapping.
func Example() {
	err := errors.New(errors.ErrorTypeConfig, "client_id is required").
		WithDetail("field", "client_id")

	fmt.Println(err.Error())

	// Output:
	// config: client_id is required
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeData, "failed to decode page")

	if errors.IsType(err, errors.ErrorTypeData) {
		fmt.Println("This is a data error")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Original error was unexpected EOF")
	}

	// Output:
	// This is a data error
	// Original error was unexpected EOF
}

// ExampleStatusCode shows how transport failures carry the response status.
func ExampleStatusCode() {
	cause := &errors.HTTPError{StatusCode: http.StatusNotFound, Method: http.MethodGet, URL: "/2/campaigns"}
	err := errors.Wrap(cause, errors.ErrorTypeConnection, "request failed")

	code, ok := errors.StatusCode(err)
	fmt.Println(code, ok)

	// Output:
	// 404 true
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection", errors.New(errors.ErrorTypeConnection, "reset"), true},
		{"rate limit", errors.New(errors.ErrorTypeRateLimit, "slow down"), true},
		{"config", errors.New(errors.ErrorTypeConfig, "bad"), false},
		{"server error", &errors.HTTPError{StatusCode: http.StatusBadGateway}, true},
		{"too many requests", &errors.HTTPError{StatusCode: http.StatusTooManyRequests}, true},
		{"not found", &errors.HTTPError{StatusCode: http.StatusNotFound}, false},
		{"plain", io.EOF, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.IsRetryable(tt.err))
		})
	}
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, errors.Wrap(nil, errors.ErrorTypeData, "nothing"))
}
