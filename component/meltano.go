package component

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MeltanoConfig configures the Meltano instance a pipeline runs under. Every
// field maps onto a MELTANO_* environment variable, which is how Meltano
// accepts configuration without editing meltano.yml.
type MeltanoConfig struct {
	StateBackend *StateBackendConfig `yaml:"state_backend,omitempty"`
	Venv         *VenvConfig         `yaml:"venv,omitempty"`
	CLI          *CLIConfig          `yaml:"cli,omitempty"`
	ELT          *ELTConfig          `yaml:"elt,omitempty"`
}

// StateBackendConfig configures where Meltano persists incremental state.
type StateBackendConfig struct {
	// URI is the state backend URI, e.g. "s3://bucket/state".
	URI string `yaml:"uri"`

	// Settings holds per-backend settings keyed by backend name, e.g.
	//
	//	state_backend:
	//	  uri: s3://bucket/state
	//	  s3:
	//	    aws_access_key_id: "${AWS_ACCESS_KEY_ID}"
	Settings map[string]map[string]any `yaml:",inline"`
}

// VenvConfig configures Meltano's virtualenv backend.
type VenvConfig struct {
	Backend string `yaml:"backend,omitempty"`
}

// CLIConfig configures Meltano CLI defaults.
type CLIConfig struct {
	LogLevel  string `yaml:"log_level,omitempty"`
	LogFormat string `yaml:"log_format,omitempty"`
}

// ELTConfig configures the extract-load pipe.
type ELTConfig struct {
	// BufferSize is the EL buffer size in bytes.
	BufferSize int `yaml:"buffer_size,omitempty"`
}

// Env renders the configuration as MELTANO_* environment variables.
// Mapping and sequence values under state backend settings are JSON-encoded,
// and "${VAR}" values are resolved, with the same rules as plugin settings.
func (c *MeltanoConfig) Env() (map[string]string, error) {
	env := map[string]string{}
	if c == nil {
		return env, nil
	}

	if sb := c.StateBackend; sb != nil {
		if sb.URI != "" {
			env["MELTANO_STATE_BACKEND_URI"] = sb.URI
		}

		backends := make([]string, 0, len(sb.Settings))
		for name := range sb.Settings {
			backends = append(backends, name)
		}
		sort.Strings(backends)

		for _, name := range backends {
			for key, v := range sb.Settings[name] {
				s, ok, err := renderValue(v)
				if err != nil {
					return nil, fmt.Errorf("state backend %s: setting %s: %w", name, key, err)
				}
				if !ok {
					continue
				}
				envKey := fmt.Sprintf("MELTANO_STATE_BACKEND_%s_%s",
					strings.ToUpper(strings.ReplaceAll(name, "-", "_")),
					strings.ToUpper(key))
				env[envKey] = s
			}
		}
	}

	if c.Venv != nil && c.Venv.Backend != "" {
		env["MELTANO_VENV_BACKEND"] = c.Venv.Backend
	}
	if c.CLI != nil {
		if c.CLI.LogLevel != "" {
			env["MELTANO_CLI_LOG_LEVEL"] = c.CLI.LogLevel
		}
		if c.CLI.LogFormat != "" {
			env["MELTANO_CLI_LOG_FORMAT"] = c.CLI.LogFormat
		}
	}
	if c.ELT != nil && c.ELT.BufferSize > 0 {
		env["MELTANO_ELT_BUFFER_SIZE"] = strconv.Itoa(c.ELT.BufferSize)
	}

	return env, nil
}
