package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/archdotdev/dagster-meltano-pipelines/component"
)

// EnvOptions parameterise BuildEnv.
type EnvOptions struct {
	// Base is the starting environment. Nil means the process environment.
	Base map[string]string

	// SSHConfigPath, when set, injects GIT_SSH_COMMAND pointing at it.
	SSHConfigPath string

	// Flags contribute run-scoped variables (select filter).
	Flags RunFlags
}

// BuildEnv assembles the environment for a pipeline invocation. Precedence,
// lowest to highest: base environment, Meltano instance config, extractor
// settings, mapper settings, loader settings, pipeline env. The base map is
// never mutated.
//
// MELTANO_PROJECT_ROOT is always dropped so an inherited value cannot
// redirect Meltano away from the configured project directory, and
// MELTANO_CLI_LOG_FORMAT defaults to json because the runner parses the
// subprocess output as JSON log lines.
func BuildEnv(p *component.Pipeline, opts EnvOptions) (map[string]string, error) {
	base := opts.Base
	if base == nil {
		base = environMap(os.Environ())
	}

	env := make(map[string]string, len(base)+len(p.Env)+16)
	for k, v := range base {
		env[k] = v
	}
	delete(env, "MELTANO_PROJECT_ROOT")

	meltanoEnv, err := p.Meltano.Env()
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: meltano config: %w", p.ID, err)
	}
	for k, v := range meltanoEnv {
		env[k] = v
	}

	for _, plugin := range p.Plugins() {
		pluginEnv, err := plugin.Env()
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", p.ID, err)
		}
		for k, v := range pluginEnv {
			env[k] = v
		}
	}

	for k, v := range p.Env {
		env[k] = v
	}

	if _, ok := env["MELTANO_CLI_LOG_FORMAT"]; !ok {
		env["MELTANO_CLI_LOG_FORMAT"] = "json"
	}

	if opts.SSHConfigPath != "" {
		env["GIT_SSH_COMMAND"] = "ssh -F " + opts.SSHConfigPath
	}

	if len(opts.Flags.SelectFilter) > 0 {
		filter, err := json.Marshal(opts.Flags.SelectFilter)
		if err != nil {
			return nil, fmt.Errorf("encode select filter: %w", err)
		}
		env[p.Extractor.EnvPrefix()+"__SELECT_FILTER"] = string(filter)
	}

	return env, nil
}

// environMap converts os.Environ-style "k=v" pairs into a map.
func environMap(pairs []string) map[string]string {
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		if k, v, ok := strings.Cut(pair, "="); ok {
			env[k] = v
		}
	}
	return env
}

// flattenEnv converts an environment map back into "k=v" pairs for exec.
func flattenEnv(env map[string]string) []string {
	pairs := make([]string, 0, len(env))
	for k, v := range env {
		pairs = append(pairs, k+"="+v)
	}
	return pairs
}
