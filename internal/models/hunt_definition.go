// -----------------------------------------------------------------------
// Hunt Definition - Immutable multi-step investigation template
// -----------------------------------------------------------------------

package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// ErrDefinitionCycle is returned when a hunt definition's dependency graph
// contains a cycle. Definitions with cycles are rejected at load time and
// can never be referenced by an execution.
var ErrDefinitionCycle = errors.New("hunt definition dependency graph contains a cycle")

var definitionValidator = validator.New()

// StepDefinition describes a single plugin invocation within a hunt.
// Params values are templates: "${key}" references resolve against the
// execution's initial parameters and accumulated context data at dispatch
// time. DependsOn lists step IDs that must complete before this step runs;
// empty means the step depends only on execution start.
type StepDefinition struct {
	ID        string            `json:"id" toml:"id" validate:"required"`
	Plugin    string            `json:"plugin" toml:"plugin" validate:"required"`
	Params    map[string]string `json:"params" toml:"params"`
	DependsOn []string          `json:"depends_on" toml:"depends_on"`
}

// HuntDefinition is an immutable, reusable investigation workflow template.
// Validate() must pass before a definition is stored; in particular the
// dependency graph is checked for cycles here, never at run time.
type HuntDefinition struct {
	ID          string           `json:"id" toml:"id" validate:"required"`
	Name        string           `json:"name" toml:"name" validate:"required"`
	Category    string           `json:"category" toml:"category"`
	Description string           `json:"description" toml:"description"`
	Steps       []StepDefinition `json:"steps" toml:"steps" validate:"required,min=1,dive"`

	// Schedule is an optional cron expression. When set, the scheduler
	// service launches an execution automatically using DefaultCaseID.
	Schedule      string `json:"schedule,omitempty" toml:"schedule"`
	DefaultCaseID string `json:"default_case_id,omitempty" toml:"default_case_id"`

	CreatedAt time.Time `json:"created_at" toml:"-"`
	UpdatedAt time.Time `json:"updated_at" toml:"-"`
}

// Validate checks field presence, step ID uniqueness, dependency references,
// the optional cron schedule, and dependency graph acyclicity.
func (d *HuntDefinition) Validate() error {
	if err := definitionValidator.Struct(d); err != nil {
		return fmt.Errorf("hunt definition %q invalid: %w", d.ID, err)
	}

	seen := make(map[string]bool, len(d.Steps))
	for _, step := range d.Steps {
		if seen[step.ID] {
			return fmt.Errorf("hunt definition %q: duplicate step id %q", d.ID, step.ID)
		}
		seen[step.ID] = true
	}

	for _, step := range d.Steps {
		for _, dep := range step.DependsOn {
			if dep == step.ID {
				return fmt.Errorf("hunt definition %q: step %q depends on itself: %w", d.ID, step.ID, ErrDefinitionCycle)
			}
			if !seen[dep] {
				return fmt.Errorf("hunt definition %q: step %q depends on unknown step %q", d.ID, step.ID, dep)
			}
		}
	}

	if d.Schedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(d.Schedule); err != nil {
			return fmt.Errorf("hunt definition %q: invalid cron schedule '%s': %w", d.ID, d.Schedule, err)
		}
	}

	if err := d.checkAcyclic(); err != nil {
		return err
	}

	return nil
}

// checkAcyclic runs Kahn's algorithm over the step dependency graph.
func (d *HuntDefinition) checkAcyclic() error {
	indegree := make(map[string]int, len(d.Steps))
	dependents := make(map[string][]string, len(d.Steps))

	for _, step := range d.Steps {
		indegree[step.ID] += 0
		for _, dep := range step.DependsOn {
			indegree[step.ID]++
			dependents[dep] = append(dependents[dep], step.ID)
		}
	}

	queue := make([]string, 0, len(d.Steps))
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	resolved := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		resolved++
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if resolved != len(d.Steps) {
		return fmt.Errorf("hunt definition %q: %w", d.ID, ErrDefinitionCycle)
	}
	return nil
}

// Step returns the step definition with the given ID, or nil.
func (d *HuntDefinition) Step(id string) *StepDefinition {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i]
		}
	}
	return nil
}
