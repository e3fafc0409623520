// Package config loads and validates tap configuration.
//
// # Usage
//
//	cfg, err := config.Load("tap.yaml")
//	if err != nil {
//	    return err
//	}
//	config.ApplyOverrides(cfg, config.NewViper())
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//
// YAML values may reference the environment with ${VAR_NAME}. Any key listed
// in the loader may also be overridden by TAP_TABOOLA_<KEY>, with dots in
// nested keys replaced by underscores (TAP_TABOOLA_STATE_PATH).
package config
