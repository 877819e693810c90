package component

import (
	"fmt"
	"sort"
	"strings"
)

// Plugin declares a Meltano plugin (an extractor, loader or mapper) and its
// configuration. Configuration keys map onto the plugin's settings; keys
// beginning with an underscore address Meltano's reserved extras such as
// _catalog, _select and _select_filter.
type Plugin struct {
	// Name is the Meltano plugin name, e.g. "tap-github".
	Name string `yaml:"name"`

	// Config holds plugin settings. Values may be scalars, sequences or
	// mappings; sequences and mappings are JSON-encoded when injected into
	// the environment. A value of the exact form "${VAR}" is resolved from
	// the process environment at run time.
	Config map[string]any `yaml:"config,omitempty"`

	// GitSSHPrivateKey is the private key used when the plugin is installed
	// from a Git source over SSH. Supports "${VAR}" indirection.
	GitSSHPrivateKey string `yaml:"git_ssh_private_key,omitempty"`
}

// ID is the plugin name with dashes replaced by underscores, suitable for use
// in identifiers.
func (p *Plugin) ID() string {
	return strings.ReplaceAll(p.Name, "-", "_")
}

// EnvPrefix is the prefix Meltano expects for the plugin's setting
// environment variables: the upper-cased name with dashes as underscores.
func (p *Plugin) EnvPrefix() string {
	return strings.ToUpper(p.ID())
}

// Env renders the plugin configuration as Meltano setting environment
// variables. Each key k becomes <PREFIX>_<K>; reserved extras keep their
// leading underscore, yielding the double-underscore form Meltano uses
// (e.g. TAP_GITHUB__CATALOG). Sequence and mapping values are JSON-encoded.
//
// Values using "${VAR}" indirection are resolved against the process
// environment; references to unset variables are omitted.
func (p *Plugin) Env() (map[string]string, error) {
	env := make(map[string]string, len(p.Config))

	keys := make([]string, 0, len(p.Config))
	for k := range p.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := p.Config[k]
		if v == nil {
			continue
		}

		s, ok, err := renderValue(v)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: setting %s: %w", p.Name, k, err)
		}
		if !ok {
			continue
		}

		env[p.EnvPrefix()+"_"+strings.ToUpper(k)] = s
	}

	return env, nil
}

// Pipeline declares a single ELT pipeline: an extractor, a loader, optional
// mappers in between, and the run-time context they execute with.
type Pipeline struct {
	// ID uniquely identifies the pipeline within its document.
	ID string `yaml:"id"`

	// Extractor is the source plugin.
	Extractor Plugin `yaml:"extractor"`

	// Loader is the destination plugin.
	Loader Plugin `yaml:"loader"`

	// Mappers are optional inline transformers applied between extractor
	// and loader, in order.
	Mappers []Plugin `yaml:"mappers,omitempty"`

	// Description is surfaced to the orchestrator. Defaults to
	// "<extractor> -> <loader>" when empty.
	Description string `yaml:"description,omitempty"`

	// Tags are arbitrary key/value labels attached to the pipeline.
	Tags map[string]string `yaml:"tags,omitempty"`

	// Env are extra environment variables for the Meltano invocation. They
	// take precedence over everything except nothing: highest priority.
	Env map[string]string `yaml:"env,omitempty"`

	// Meltano configures the Meltano instance itself (state backend, venv
	// backend, CLI defaults, ELT buffer size).
	Meltano *MeltanoConfig `yaml:"meltano,omitempty"`

	// Schedule is an optional cron expression (standard 5-field form) the
	// serve-mode scheduler triggers the pipeline on.
	Schedule string `yaml:"schedule,omitempty"`

	// StateSuffix is appended to the Meltano state ID, letting one document
	// run the same extractor/loader pair against multiple environments.
	StateSuffix string `yaml:"state_suffix,omitempty"`

	// GitSSHPrivateKeys is the deprecated pipeline-level key list.
	//
	// Deprecated: set GitSSHPrivateKey on the individual plugins instead.
	GitSSHPrivateKeys []string `yaml:"git_ssh_private_keys,omitempty"`
}

// Describe returns the pipeline description, falling back to the
// extractor -> loader pair.
func (p *Pipeline) Describe() string {
	if p.Description != "" {
		return p.Description
	}
	return fmt.Sprintf("%s -> %s", p.Extractor.Name, p.Loader.Name)
}

// Plugins returns extractor, mappers and loader in execution order.
func (p *Pipeline) Plugins() []*Plugin {
	out := make([]*Plugin, 0, len(p.Mappers)+2)
	out = append(out, &p.Extractor)
	for i := range p.Mappers {
		out = append(out, &p.Mappers[i])
	}
	out = append(out, &p.Loader)
	return out
}
