// Package component defines the declarative pipeline document that binds a
// Meltano project to a set of runnable ELT pipelines.
//
// A document names a Meltano project directory and declares pipelines in terms
// of the project's extractor and loader plugins, together with plugin
// configuration, environment variables, schedules and tags. The runner package
// translates each declared pipeline into a `meltano run` invocation.
package component

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultDocumentName is the file name looked up when no explicit document
// path is given.
const DefaultDocumentName = "pipelines.yaml"

// ProjectRef locates the Meltano project a document operates on. In YAML it
// may be either a plain string or a mapping with a project_dir key:
//
//	project: ./meltano
//	project:
//	  project_dir: ./meltano
type ProjectRef struct {
	ProjectDir string `yaml:"project_dir"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (r *ProjectRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&r.ProjectDir)
	}

	type plain ProjectRef
	var p plain
	if err := node.Decode(&p); err != nil {
		return fmt.Errorf("project must be a path or a {project_dir} mapping: %w", err)
	}
	*r = ProjectRef(p)
	return nil
}

// AssetProps are presentation properties applied to every pipeline the
// document declares when it is surfaced to the orchestrator.
type AssetProps struct {
	// KeyPrefix is prepended to pipeline identifiers in the orchestrator's
	// namespace.
	KeyPrefix []string `yaml:"key_prefix,omitempty"`

	// Tags are merged into each pipeline's tags, with pipeline-level tags
	// taking precedence.
	Tags map[string]string `yaml:"tags,omitempty"`
}

// Component is the root of a pipeline document.
type Component struct {
	// Project locates the Meltano project. Relative paths are resolved
	// against the document's directory at load time.
	Project ProjectRef `yaml:"project"`

	// Pipelines are the declared ELT pipelines.
	Pipelines []Pipeline `yaml:"pipelines"`

	// AssetProps apply to all pipelines in the document.
	AssetProps *AssetProps `yaml:"asset_props,omitempty"`
}

// Load reads and parses a pipeline document. The project directory is
// resolved relative to the document location, so a document can be loaded
// from anywhere and still point at the right project.
func Load(path string) (*Component, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline document: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if c.Project.ProjectDir != "" && !filepath.IsAbs(c.Project.ProjectDir) {
		base := filepath.Dir(path)
		abs, err := filepath.Abs(filepath.Join(base, c.Project.ProjectDir))
		if err != nil {
			return nil, fmt.Errorf("resolve project dir: %w", err)
		}
		c.Project.ProjectDir = abs
	}

	return c, nil
}

// Parse decodes a pipeline document from raw YAML without resolving paths.
func Parse(data []byte) (*Component, error) {
	var c Component
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Pipeline returns the declared pipeline with the given ID, or nil.
func (c *Component) Pipeline(id string) *Pipeline {
	for i := range c.Pipelines {
		if c.Pipelines[i].ID == id {
			return &c.Pipelines[i]
		}
	}
	return nil
}

// EffectiveTags merges document-level asset tags with the pipeline's own tags
// and the implicit extractor/loader tags. Pipeline tags win over document
// tags; both win over the implicit ones.
func (c *Component) EffectiveTags(p *Pipeline) map[string]string {
	tags := map[string]string{
		"extractor": p.Extractor.Name,
		"loader":    p.Loader.Name,
	}
	if c.AssetProps != nil {
		for k, v := range c.AssetProps.Tags {
			tags[k] = v
		}
	}
	for k, v := range p.Tags {
		tags[k] = v
	}
	return tags
}
