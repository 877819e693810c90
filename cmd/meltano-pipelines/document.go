package main

import (
	"fmt"

	"github.com/archdotdev/dagster-meltano-pipelines/component"
	"github.com/archdotdev/dagster-meltano-pipelines/project"
)

// loadComponent loads the pipeline document, validates it, and opens the
// Meltano project it points at.
func (a *app) loadComponent() (*component.Component, *project.Project, error) {
	c, err := component.Load(a.document)
	if err != nil {
		return nil, nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid pipeline document: %w", err)
	}

	proj, err := project.Load(c.Project.ProjectDir)
	if err != nil {
		return nil, nil, err
	}

	if err := c.ValidateProject(proj); err != nil {
		return nil, nil, err
	}

	return c, proj, nil
}
