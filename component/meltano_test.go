package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeltanoConfigEnv(t *testing.T) {
	t.Setenv("MY_BACKEND_SECRET", "s3c3r3t")

	cfg := &MeltanoConfig{
		StateBackend: &StateBackendConfig{
			URI: "mybackend://some/path",
			Settings: map[string]map[string]any{
				"mybackend": {
					"api_url": "https://api.mybackend.example",
					"secret":  "${MY_BACKEND_SECRET}",
				},
			},
		},
		Venv: &VenvConfig{Backend: "virtualenv"},
		CLI:  &CLIConfig{LogLevel: "debug", LogFormat: "json"},
		ELT:  &ELTConfig{BufferSize: 104_857_600},
	}

	env, err := cfg.Env()
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"MELTANO_STATE_BACKEND_URI":               "mybackend://some/path",
		"MELTANO_STATE_BACKEND_MYBACKEND_API_URL": "https://api.mybackend.example",
		"MELTANO_STATE_BACKEND_MYBACKEND_SECRET":  "s3c3r3t",
		"MELTANO_VENV_BACKEND":                    "virtualenv",
		"MELTANO_CLI_LOG_LEVEL":                   "debug",
		"MELTANO_CLI_LOG_FORMAT":                  "json",
		"MELTANO_ELT_BUFFER_SIZE":                 "104857600",
	}, env)
}

func TestMeltanoConfigEnvNil(t *testing.T) {
	var cfg *MeltanoConfig

	env, err := cfg.Env()
	require.NoError(t, err)
	assert.Empty(t, env)
}

func TestMeltanoConfigEnvPartial(t *testing.T) {
	cfg := &MeltanoConfig{
		CLI: &CLIConfig{LogFormat: "json"},
	}

	env, err := cfg.Env()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"MELTANO_CLI_LOG_FORMAT": "json"}, env)
}
