package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/taboola-tap/pkg/errors"
)

// EnvPrefix prefixes environment overrides, e.g. TAP_TABOOLA_CLIENT_SECRET.
const EnvPrefix = "TAP_TABOOLA"

// overrideKeys are the settings that may come from the environment or flags.
var overrideKeys = []string{
	"client_id",
	"client_secret",
	"start_date",
	"streams",
	"account_ids",
	"base_url",
	"auth_url",
	"state.backend",
	"state.path",
	"output.destination",
	"output.path",
	"output.compression",
	"observability.log_level",
	"observability.metrics_addr",
}

// Load reads a TapConfig from a YAML file on top of the defaults. ${VAR}
// references are replaced with environment values before parsing.
func Load(filePath string) (*TapConfig, error) {
	cfg := NewTapConfig()
	if err := LoadInto(filePath, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInto loads a YAML file into an arbitrary structure
func LoadInto(filePath string, out interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").WithDetail("path", filePath)
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML").WithDetail("path", filePath)
	}

	return nil
}

// Save writes a configuration to a YAML file
func Save(filePath string, cfg interface{}) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file")
	}

	return nil
}

// NewViper returns a viper instance that reads TAP_TABOOLA_* environment
// variables. Callers may bind command line flags to the same keys.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range overrideKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// ApplyOverrides copies every key set in v onto cfg.
func ApplyOverrides(cfg *TapConfig, v *viper.Viper) {
	set := func(key string, dst *string) {
		if v.IsSet(key) {
			if s := v.GetString(key); s != "" {
				*dst = s
			}
		}
	}

	set("client_id", &cfg.ClientID)
	set("client_secret", &cfg.ClientSecret)
	set("start_date", &cfg.StartDate)
	set("base_url", &cfg.BaseURL)
	set("auth_url", &cfg.AuthURL)
	set("state.backend", &cfg.State.Backend)
	set("state.path", &cfg.State.Path)
	set("output.destination", &cfg.Output.Destination)
	set("output.path", &cfg.Output.Path)
	set("output.compression", &cfg.Output.Compression)
	set("observability.log_level", &cfg.Observability.LogLevel)
	set("observability.metrics_addr", &cfg.Observability.MetricsAddr)

	setList := func(key string, dst *[]string) {
		if !v.IsSet(key) {
			return
		}
		var items []string
		for _, s := range strings.Split(v.GetString(key), ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		if len(items) > 0 {
			*dst = items
		}
	}

	setList("streams", &cfg.Streams)
	setList("account_ids", &cfg.AccountIDs)
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
