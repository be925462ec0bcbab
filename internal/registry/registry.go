// Package registry validates the council roster and holds the per-run agent
// configuration: the ordered planner list plus exactly one judge.
package registry

import (
	"fmt"
	"os"
	"strings"

	"github.com/mverikas/agora/internal/council"
	"gopkg.in/yaml.v3"
)

// MaxPlanners is bounded by the label alphabet (Plan A..Plan Z).
const MaxPlanners = 26

type Registry struct {
	planners []council.AgentConfig
	judge    council.AgentConfig
}

// Load reads a TaskSpec YAML file.
func Load(path string) (*council.TaskSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task spec: %w", err)
	}

	var spec council.TaskSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse task spec: %w", err)
	}
	return &spec, nil
}

// New validates the roster in spec and builds the registry. A spec that fails
// validation is rejected before any process is dispatched.
func New(spec *council.TaskSpec) (*Registry, error) {
	if spec == nil {
		return nil, council.NewError(council.SpecInvalid, fmt.Errorf("task spec is nil"))
	}
	if strings.TrimSpace(spec.Task) == "" {
		return nil, council.NewError(council.SpecInvalid, fmt.Errorf("task description is empty"))
	}
	if len(spec.Agents.Planners) == 0 {
		return nil, council.NewError(council.SpecInvalid, fmt.Errorf("planner list is empty"))
	}
	if len(spec.Agents.Planners) > MaxPlanners {
		return nil, council.NewError(council.SpecInvalid,
			fmt.Errorf("too many planners: %d (max %d)", len(spec.Agents.Planners), MaxPlanners))
	}

	seen := make(map[string]bool, len(spec.Agents.Planners))
	for _, p := range spec.Agents.Planners {
		if err := validateAgent(p); err != nil {
			return nil, council.NewError(council.SpecInvalid, err)
		}
		if seen[p.Name] {
			return nil, council.NewError(council.SpecInvalid,
				fmt.Errorf("duplicate planner name %q", p.Name))
		}
		seen[p.Name] = true
	}

	// Judge defaults to the first planner's config when omitted.
	judge := spec.Agents.Planners[0]
	judge.Name = "judge"
	if spec.Agents.Judge != nil {
		judge = *spec.Agents.Judge
		if judge.Name == "" {
			judge.Name = "judge"
		}
		if err := validateAgent(judge); err != nil {
			return nil, council.NewError(council.SpecInvalid, fmt.Errorf("judge: %w", err))
		}
	}

	return &Registry{
		planners: append([]council.AgentConfig(nil), spec.Agents.Planners...),
		judge:    judge,
	}, nil
}

func validateAgent(a council.AgentConfig) error {
	if a.Name == "" {
		return fmt.Errorf("agent name is required")
	}
	switch a.Kind {
	case council.KindClaude, council.KindCodex, council.KindGemini:
		// Built-in adapters carry their own command conventions.
	case council.KindCustom:
		if a.Command == "" {
			return fmt.Errorf("agent %q: custom kind requires command", a.Name)
		}
		switch a.PromptMode {
		case council.PromptStdin, council.PromptArg:
		default:
			return fmt.Errorf("agent %q: custom kind requires prompt_mode stdin or arg", a.Name)
		}
	case "":
		return fmt.Errorf("agent %q: kind is required", a.Name)
	default:
		return fmt.Errorf("agent %q: unknown kind %q", a.Name, a.Kind)
	}
	return nil
}

// Planners returns the roster in original spec order.
func (r *Registry) Planners() []council.AgentConfig {
	return r.planners
}

// Judge returns the judge configuration.
func (r *Registry) Judge() council.AgentConfig {
	return r.judge
}

// Get looks up a planner by name.
func (r *Registry) Get(name string) (council.AgentConfig, bool) {
	for _, p := range r.planners {
		if p.Name == name {
			return p, true
		}
	}
	return council.AgentConfig{}, false
}
