package config

import (
	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

// StateConfig selects the bookmark persistence backend.
type StateConfig struct {
	// Backend is one of file, s3, gcs, postgres
	Backend string `yaml:"backend" json:"backend"`
	// Path is the state file for the file backend
	Path string `yaml:"path" json:"path"`
	// Bucket and Key locate the state object for s3 and gcs
	Bucket string `yaml:"bucket" json:"bucket"`
	Key    string `yaml:"key" json:"key"`
	// Region for the s3 backend
	Region string `yaml:"region" json:"region"`
	// CredentialsFile for the gcs backend
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	// DSN and Table configure the postgres backend
	DSN   string `yaml:"dsn" json:"dsn"`
	Table string `yaml:"table" json:"table"`
	// TapID keys the state row in shared stores
	TapID string `yaml:"tap_id" json:"tap_id"`
}

// Validate checks that the selected backend has its location configured.
func (s *StateConfig) Validate() error {
	switch s.Backend {
	case "file":
		if s.Path == "" {
			return errors.New(errors.ErrorTypeConfig, "state.path is required for the file backend")
		}
	case "s3", "gcs":
		if s.Bucket == "" || s.Key == "" {
			return errors.Newf(errors.ErrorTypeConfig, "state.bucket and state.key are required for the %s backend", s.Backend)
		}
	case "postgres":
		if s.DSN == "" {
			return errors.New(errors.ErrorTypeConfig, "state.dsn is required for the postgres backend")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown state backend %q", s.Backend)
	}
	return nil
}

// OutputConfig selects where messages are written.
type OutputConfig struct {
	// Destination is one of jsonl, kafka, s3, gcs
	Destination string `yaml:"destination" json:"destination"`
	// Path is the jsonl file; "-" writes to stdout
	Path string `yaml:"path" json:"path"`
	// Compression is one of none, gzip, zstd, lz4, s2
	Compression string `yaml:"compression" json:"compression"`
	// Brokers, Topic and StateTopic configure the kafka destination
	Brokers    []string `yaml:"brokers" json:"brokers"`
	Topic      string   `yaml:"topic" json:"topic"`
	StateTopic string   `yaml:"state_topic" json:"state_topic"`
	// Bucket, Key, Region and CredentialsFile configure object store uploads
	Bucket          string `yaml:"bucket" json:"bucket"`
	Key             string `yaml:"key" json:"key"`
	Region          string `yaml:"region" json:"region"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
}

// Validate checks the destination specific fields.
func (o *OutputConfig) Validate() error {
	switch o.Compression {
	case "", "none", "gzip", "zstd", "lz4", "s2":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown output compression %q", o.Compression)
	}

	switch o.Destination {
	case "jsonl":
	case "kafka":
		if len(o.Brokers) == 0 || o.Topic == "" {
			return errors.New(errors.ErrorTypeConfig, "output.brokers and output.topic are required for kafka")
		}
	case "s3", "gcs":
		if o.Bucket == "" || o.Key == "" {
			return errors.Newf(errors.ErrorTypeConfig, "output.bucket and output.key are required for %s", o.Destination)
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown output destination %q", o.Destination)
	}
	return nil
}
