// Package project reads a Meltano project directory: its meltano.yml and the
// plugin lock files Meltano writes under plugins/<type>/. The adapter never
// edits the project; it only introspects the plugin set so pipeline documents
// can be validated and plugin settings resolved.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// MeltanoFile is the project manifest file name.
const MeltanoFile = "meltano.yml"

// ErrNotFound is returned when the project directory does not exist.
var ErrNotFound = errors.New("meltano project not found")

// Plugin type names as they appear in meltano.yml and under plugins/.
const (
	PluginTypeExtractors = "extractors"
	PluginTypeLoaders    = "loaders"
	PluginTypeMappers    = "mappers"
)

// PluginDef is a resolved plugin definition: the lock file contents (when the
// plugin was installed from the hub) merged with the meltano.yml entry, which
// wins on conflicts. Custom plugins declaring a namespace are taken entirely
// from meltano.yml.
type PluginDef map[string]any

// Name returns the plugin name.
func (d PluginDef) Name() string {
	s, _ := d["name"].(string)
	return s
}

// Settings returns the plugin's declared settings, one map per setting.
func (d PluginDef) Settings() []map[string]any {
	raw, _ := d["settings"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, s := range raw {
		if m, ok := s.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

type pluginKey struct {
	Type string
	Name string
}

// Project is a parsed Meltano project.
type Project struct {
	// Dir is the absolute project directory.
	Dir string

	plugins map[pluginKey]PluginDef
}

type meltanoManifest struct {
	Version            int                         `yaml:"version"`
	DefaultEnvironment string                      `yaml:"default_environment"`
	ProjectID          string                      `yaml:"project_id"`
	Plugins            map[string][]map[string]any `yaml:"plugins"`
}

// Load reads the project at dir. It returns ErrNotFound (wrapped) when the
// directory does not exist, and an error naming the plugin when a lock file
// is missing or unparseable.
func Load(dir string) (*Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}

	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, abs)
	}
	if err != nil {
		return nil, fmt.Errorf("stat project dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotFound, abs)
	}

	data, err := os.ReadFile(filepath.Join(abs, MeltanoFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", MeltanoFile, err)
	}

	var manifest meltanoManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse %s: %w", MeltanoFile, err)
	}

	p := &Project{
		Dir:     abs,
		plugins: make(map[pluginKey]PluginDef),
	}

	for pluginType, entries := range manifest.Plugins {
		for _, entry := range entries {
			name, _ := entry["name"].(string)
			if name == "" {
				return nil, fmt.Errorf("%s: %s plugin without a name", MeltanoFile, pluginType)
			}

			// Inherited plugins resolve through their parent at run time;
			// Meltano owns that resolution, not the adapter.
			if _, inherited := entry["inherit_from"]; inherited {
				continue
			}

			def, err := p.resolvePlugin(pluginType, entry)
			if err != nil {
				return nil, err
			}
			p.plugins[pluginKey{Type: pluginType, Name: name}] = def
		}
	}

	return p, nil
}

// resolvePlugin builds the full definition for one meltano.yml entry.
func (p *Project) resolvePlugin(pluginType string, entry map[string]any) (PluginDef, error) {
	name, _ := entry["name"].(string)

	// Custom plugins inline their whole definition under a namespace.
	if ns, ok := entry["namespace"].(string); ok && ns != "" {
		return PluginDef(entry), nil
	}

	variant, _ := entry["variant"].(string)
	if variant == "" {
		return nil, fmt.Errorf("%s %s: no variant and no namespace; cannot locate lock file", pluginType, name)
	}

	lockPath := filepath.Join(p.Dir, "plugins", pluginType, fmt.Sprintf("%s--%s.lock", name, variant))
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read lock file: %w", pluginType, name, err)
	}

	def := PluginDef{}
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%s %s: parse lock file %s: %w", pluginType, name, lockPath, err)
	}

	// The project entry overrides the locked definition.
	for k, v := range entry {
		def[k] = v
	}
	return def, nil
}

// Plugin returns the definition for (pluginType, name), or nil when absent.
func (p *Project) Plugin(pluginType, name string) PluginDef {
	return p.plugins[pluginKey{Type: pluginType, Name: name}]
}

// HasPlugin reports whether the project declares the plugin.
func (p *Project) HasPlugin(pluginType, name string) bool {
	_, ok := p.plugins[pluginKey{Type: pluginType, Name: name}]
	return ok
}

// Names returns the sorted plugin names of the given type.
func (p *Project) Names(pluginType string) []string {
	var names []string
	for k := range p.plugins {
		if k.Type == pluginType {
			names = append(names, k.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Extractors returns the sorted extractor names.
func (p *Project) Extractors() []string { return p.Names(PluginTypeExtractors) }

// Loaders returns the sorted loader names.
func (p *Project) Loaders() []string { return p.Names(PluginTypeLoaders) }

// LockFiles lists the plugin lock files present under plugins/, relative to
// the project directory.
func (p *Project) LockFiles() ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(p.Dir), "plugins/*/*.lock")
	if err != nil {
		return nil, fmt.Errorf("glob lock files: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// OrphanLocks returns lock files that no meltano.yml plugin entry references.
// Meltano leaves these behind when plugins are removed by hand; they are
// harmless but worth surfacing from validate.
func (p *Project) OrphanLocks() ([]string, error) {
	locks, err := p.LockFiles()
	if err != nil {
		return nil, err
	}

	referenced := make(map[string]bool, len(p.plugins))
	for k, def := range p.plugins {
		variant, _ := def["variant"].(string)
		if variant == "" {
			continue
		}
		referenced[filepath.Join("plugins", k.Type, fmt.Sprintf("%s--%s.lock", k.Name, variant))] = true
	}

	var orphans []string
	for _, lock := range locks {
		if !referenced[lock] {
			orphans = append(orphans, lock)
		}
	}
	return orphans, nil
}
