package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archdotdev/dagster-meltano-pipelines/component"
)

func testPipeline() *component.Pipeline {
	return &component.Pipeline{
		ID: "test",
		Extractor: component.Plugin{
			Name:   "tap-test",
			Config: map[string]any{"api_key": "tap-value", "shared": "from-extractor"},
		},
		Loader: component.Plugin{
			Name:   "target-test",
			Config: map[string]any{"shared": "from-loader"},
		},
	}
}

func TestBuildEnvPluginSettings(t *testing.T) {
	env, err := BuildEnv(testPipeline(), EnvOptions{Base: map[string]string{"PATH": "/usr/bin"}})
	require.NoError(t, err)

	assert.Equal(t, "/usr/bin", env["PATH"])
	assert.Equal(t, "tap-value", env["TAP_TEST_API_KEY"])
	assert.Equal(t, "from-extractor", env["TAP_TEST_SHARED"])
	assert.Equal(t, "from-loader", env["TARGET_TEST_SHARED"])
}

func TestBuildEnvPrecedence(t *testing.T) {
	p := testPipeline()
	p.Env = map[string]string{"TAP_TEST_API_KEY": "pipeline-override"}

	base := map[string]string{"TAP_TEST_API_KEY": "base-value"}
	env, err := BuildEnv(p, EnvOptions{Base: base})
	require.NoError(t, err)

	// pipeline env wins over plugin settings, which win over the base
	assert.Equal(t, "pipeline-override", env["TAP_TEST_API_KEY"])
	// the base map itself is untouched
	assert.Equal(t, "base-value", base["TAP_TEST_API_KEY"])
}

func TestBuildEnvDropsProjectRoot(t *testing.T) {
	env, err := BuildEnv(testPipeline(), EnvOptions{
		Base: map[string]string{"MELTANO_PROJECT_ROOT": "/somewhere/else"},
	})
	require.NoError(t, err)

	_, ok := env["MELTANO_PROJECT_ROOT"]
	assert.False(t, ok)
}

func TestBuildEnvLogFormatDefault(t *testing.T) {
	env, err := BuildEnv(testPipeline(), EnvOptions{Base: map[string]string{}})
	require.NoError(t, err)
	assert.Equal(t, "json", env["MELTANO_CLI_LOG_FORMAT"])

	env, err = BuildEnv(testPipeline(), EnvOptions{
		Base: map[string]string{"MELTANO_CLI_LOG_FORMAT": "colored"},
	})
	require.NoError(t, err)
	assert.Equal(t, "colored", env["MELTANO_CLI_LOG_FORMAT"])
}

func TestBuildEnvMeltanoConfig(t *testing.T) {
	p := testPipeline()
	p.Meltano = &component.MeltanoConfig{
		StateBackend: &component.StateBackendConfig{URI: "s3://state-bucket/state"},
	}

	env, err := BuildEnv(p, EnvOptions{Base: map[string]string{}})
	require.NoError(t, err)
	assert.Equal(t, "s3://state-bucket/state", env["MELTANO_STATE_BACKEND_URI"])
}

func TestBuildEnvSSHCommand(t *testing.T) {
	env, err := BuildEnv(testPipeline(), EnvOptions{
		Base:          map[string]string{},
		SSHConfigPath: "/tmp/meltano-ssh-x/ssh_config",
	})
	require.NoError(t, err)
	assert.Equal(t, "ssh -F /tmp/meltano-ssh-x/ssh_config", env["GIT_SSH_COMMAND"])
}

func TestBuildEnvSelectFilter(t *testing.T) {
	env, err := BuildEnv(testPipeline(), EnvOptions{
		Base:  map[string]string{},
		Flags: RunFlags{SelectFilter: []string{"users", "orders.*"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `["users","orders.*"]`, env["TAP_TEST__SELECT_FILTER"])
}

func TestFlattenEnv(t *testing.T) {
	pairs := flattenEnv(map[string]string{"A": "1", "B": "2"})
	assert.ElementsMatch(t, []string{"A=1", "B=2"}, pairs)
}
