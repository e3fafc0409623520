// Package jsonl writes RECORD and STATE messages as line-delimited JSON to
// stdout or a file, optionally compressed.
package jsonl

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/taboola-tap/pkg/compression"
	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/registry"
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
	jsonpool "github.com/ajitpratap0/taboola-tap/pkg/json"
)

const bufferSize = 64 * 1024

func init() {
	_ = registry.RegisterDestination("jsonl", New)
}

// Destination encodes one message per line. STATE messages flush the
// buffered output so a checkpoint never trails the records before it.
type Destination struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	codec  io.WriteCloser
	enc    *jsonpool.LineEncoder
	closed bool

	records atomic.Int64
	states  atomic.Int64
}

// New opens the destination described by cfg. Path "-" or empty writes to
// stdout.
func New(_ context.Context, cfg *config.OutputConfig) (core.Destination, error) {
	alg, err := compression.Parse(cfg.Compression)
	if err != nil {
		return nil, err
	}

	if cfg.Path == "" || cfg.Path == "-" {
		return NewWriter(os.Stdout, alg)
	}

	f, err := os.Create(cfg.Path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "create output file")
	}
	d, err := NewWriter(f, alg)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	d.file = f
	return d, nil
}

// NewWriter creates a destination over w. Close flushes but does not close
// w.
func NewWriter(w io.Writer, alg compression.Algorithm) (*Destination, error) {
	buf := bufio.NewWriterSize(w, bufferSize)
	codec, err := compression.NewWriter(buf, alg, compression.Default)
	if err != nil {
		return nil, err
	}
	return &Destination{
		buf:   buf,
		codec: codec,
		enc:   jsonpool.NewLineEncoder(codec),
	}, nil
}

// WriteRecord implements core.Destination.
func (d *Destination) WriteRecord(_ context.Context, msg core.RecordMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New(errors.ErrorTypeInternal, "write to closed destination")
	}
	if err := d.enc.Encode(msg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "encode record of "+msg.Stream)
	}
	d.records.Add(1)
	return nil
}

// WriteState implements core.Destination.
func (d *Destination) WriteState(_ context.Context, msg core.StateMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New(errors.ErrorTypeInternal, "write to closed destination")
	}
	if err := d.enc.Encode(msg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "encode state")
	}
	d.states.Add(1)
	return d.flush()
}

func (d *Destination) flush() error {
	if f, ok := d.codec.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "flush compressor")
		}
	}
	if err := d.buf.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "flush output")
	}
	return nil
}

// Close implements core.Destination.
func (d *Destination) Close(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var firstErr error
	if err := d.codec.Close(); err != nil {
		firstErr = errors.Wrap(err, errors.ErrorTypeFile, "close compressor")
	}
	if err := d.buf.Flush(); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, errors.ErrorTypeFile, "flush output")
	}
	if d.file != nil {
		if err := d.file.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, errors.ErrorTypeFile, "close output file")
		}
	}
	return firstErr
}

// Written returns the number of records and states encoded.
func (d *Destination) Written() (records, states int64) {
	return d.records.Load(), d.states.Load()
}
