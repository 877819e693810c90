package component

import (
	"fmt"
	"regexp"

	"github.com/robfig/cron/v3"

	"github.com/archdotdev/dagster-meltano-pipelines/project"
)

var envNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// scheduleParser accepts the standard 5-field cron form plus descriptors like
// @hourly, matching what the serve-mode scheduler runs with.
var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks the document's internal consistency: pipeline IDs present
// and unique, extractor and loader names set, schedules parseable, and
// environment variable names well-formed. It does not consult the Meltano
// project; see ValidateProject.
func (c *Component) Validate() error {
	if c.Project.ProjectDir == "" {
		return fmt.Errorf("project is required")
	}

	seen := make(map[string]bool, len(c.Pipelines))
	for i := range c.Pipelines {
		p := &c.Pipelines[i]
		if p.ID == "" {
			return fmt.Errorf("pipeline %d: id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("pipeline id %q is not unique", p.ID)
		}
		seen[p.ID] = true

		if err := c.validatePipeline(p); err != nil {
			return fmt.Errorf("pipeline %s: %w", p.ID, err)
		}
	}
	return nil
}

func (c *Component) validatePipeline(p *Pipeline) error {
	if p.Extractor.Name == "" {
		return fmt.Errorf("extractor name is required")
	}
	if p.Loader.Name == "" {
		return fmt.Errorf("loader name is required")
	}
	for i, m := range p.Mappers {
		if m.Name == "" {
			return fmt.Errorf("mapper %d: name is required", i)
		}
	}

	if p.Schedule != "" {
		if _, err := scheduleParser.Parse(p.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", p.Schedule, err)
		}
	}

	for name := range p.Env {
		if !envNamePattern.MatchString(name) {
			return fmt.Errorf("invalid environment variable name %q", name)
		}
	}

	return nil
}

// ValidateProject checks that every plugin a pipeline names exists in the
// Meltano project's plugin set.
func (c *Component) ValidateProject(proj *project.Project) error {
	for i := range c.Pipelines {
		p := &c.Pipelines[i]
		if !proj.HasPlugin(project.PluginTypeExtractors, p.Extractor.Name) {
			return fmt.Errorf("pipeline %s: extractor %q not found in project %s",
				p.ID, p.Extractor.Name, proj.Dir)
		}
		if !proj.HasPlugin(project.PluginTypeLoaders, p.Loader.Name) {
			return fmt.Errorf("pipeline %s: loader %q not found in project %s",
				p.ID, p.Loader.Name, proj.Dir)
		}
		for _, m := range p.Mappers {
			if !proj.HasPlugin(project.PluginTypeMappers, m.Name) {
				return fmt.Errorf("pipeline %s: mapper %q not found in project %s",
					p.ID, m.Name, proj.Dir)
			}
		}
	}
	return nil
}
