package web

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hperssn/reframe/internal/domain"
)

//go:embed steps.yaml
var defaultSteps []byte

type Example struct {
	Label string `yaml:"label"`
	Text  string `yaml:"text"`
}

// StepCopy is everything one card shows apart from the user's own input.
type StepCopy struct {
	Key         string    `yaml:"key"`
	Eyebrow     string    `yaml:"eyebrow"`
	Title       string    `yaml:"title"`
	Body        []string  `yaml:"body"`
	Bullets     []string  `yaml:"bullets"`
	Field       string    `yaml:"field"`
	Placeholder string    `yaml:"placeholder"`
	Choices     bool      `yaml:"choices"`
	Examples    []Example `yaml:"examples"`
	Hint        string    `yaml:"hint"`
	Button      string    `yaml:"button"`
}

type CompletedCopy struct {
	Title string   `yaml:"title"`
	Body  []string `yaml:"body"`
}

type StepConfig struct {
	Steps     []StepCopy    `yaml:"steps"`
	Completed CompletedCopy `yaml:"completed"`
}

// ParseStepConfig decodes a step configuration and checks it has one card
// per wizard step, in wizard order.
func ParseStepConfig(data []byte) (*StepConfig, error) {
	var cfg StepConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse step config: %w", err)
	}

	if len(cfg.Steps) != domain.TotalSteps {
		return nil, fmt.Errorf("step config has %d steps, want %d", len(cfg.Steps), domain.TotalSteps)
	}
	for i, s := range cfg.Steps {
		if want := domain.Step(i).String(); s.Key != want {
			return nil, fmt.Errorf("step %d has key %q, want %q", i, s.Key, want)
		}
		if s.Button == "" {
			return nil, fmt.Errorf("step %q has no button label", s.Key)
		}
	}

	return &cfg, nil
}

func DefaultStepConfig() (*StepConfig, error) {
	return ParseStepConfig(defaultSteps)
}
