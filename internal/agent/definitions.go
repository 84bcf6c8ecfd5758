// Package agent wraps the assistants backend with the conversation-session
// state machine and the tool delegation the extraction stage relies on.
package agent

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/nin-ia/leadcard/pkg/openai"
)

//go:embed definitions.yaml
var definitionsYAML []byte

// ToolDef declares one function tool in an agent definition.
type ToolDef struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters"`
}

// Definition is the immutable configuration of one pipeline stage's assistant:
// a system instruction, a model identifier and an optional tool schema.
type Definition struct {
	Name         string    `yaml:"name"`
	Model        string    `yaml:"model"`
	Instructions string    `yaml:"instructions"`
	Tools        []ToolDef `yaml:"tools"`
}

// OpenAITools converts the declared tool schemas to backend tool declarations.
func (d Definition) OpenAITools() []openai.Tool {
	if len(d.Tools) == 0 {
		return nil
	}
	tools := make([]openai.Tool, len(d.Tools))
	for i, t := range d.Tools {
		tools[i] = openai.Tool{
			Type: "function",
			Function: openai.FunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return tools
}

// Registry holds the three stage definitions, enumerated once at startup.
type Registry struct {
	Extractor Definition `yaml:"extractor"`
	Matcher   Definition `yaml:"matcher"`
	Emailer   Definition `yaml:"emailer"`
}

// LoadDefinitions parses the embedded agent definitions. A non-empty model
// overrides the per-definition default for every stage.
func LoadDefinitions(model string) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(definitionsYAML, &reg); err != nil {
		return nil, eris.Wrap(err, "agent: parse definitions")
	}

	for _, def := range []*Definition{&reg.Extractor, &reg.Matcher, &reg.Emailer} {
		if def.Name == "" || def.Instructions == "" {
			return nil, eris.Errorf("agent: incomplete definition %q", def.Name)
		}
		if model != "" {
			def.Model = model
		}
	}

	return &reg, nil
}
