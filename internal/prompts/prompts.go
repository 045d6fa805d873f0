// Package prompts holds the persona prompts sent as the hidden system turn of
// every model call.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultYAML []byte

type Set struct {
	Greeting   string `yaml:"greeting"`
	Intake     string `yaml:"intake"`
	Strategy   string `yaml:"strategy"`
	Summarizer string `yaml:"summarizer"`
	Research   string `yaml:"research"`
	Validator  string `yaml:"validator"`
	Synthesis  string `yaml:"synthesis"`
	Styling    string `yaml:"styling"`
	BaseChat   string `yaml:"base_chat"`
	MiniChat   string `yaml:"mini_chat"`
}

// Default returns the built-in prompts.
func Default() *Set {
	s, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("prompts: embedded defaults are invalid: %v", err))
	}
	return s
}

func Parse(data []byte) (*Set, error) {
	var s Set
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	s.trim()
	return &s, nil
}

// Load reads a prompts file on top of the defaults. Keys missing from the
// file keep their built-in text. An empty path returns the defaults.
func Load(path string) (*Set, error) {
	base := Default()
	if strings.TrimSpace(path) == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts %s: %w", path, err)
	}
	over, err := Parse(data)
	if err != nil {
		return nil, err
	}
	base.merge(over)
	return base, nil
}

// ForPhase returns the system prompt of a pipeline phase, or "" when the
// phase has none.
func (s *Set) ForPhase(phase string) string {
	switch phase {
	case "intake":
		return s.Intake
	case "strategy":
		return s.Strategy
	case "summarizer":
		return s.Summarizer
	case "research":
		return s.Research
	case "validator":
		return s.Validator
	case "synthesis":
		return s.Synthesis
	case "styling":
		return s.Styling
	default:
		return ""
	}
}

func (s *Set) fields() []*string {
	return []*string{
		&s.Greeting, &s.Intake, &s.Strategy, &s.Summarizer, &s.Research,
		&s.Validator, &s.Synthesis, &s.Styling, &s.BaseChat, &s.MiniChat,
	}
}

func (s *Set) trim() {
	for _, f := range s.fields() {
		*f = strings.TrimSpace(*f)
	}
}

func (s *Set) merge(o *Set) {
	dst, src := s.fields(), o.fields()
	for i := range dst {
		if *src[i] != "" {
			*dst[i] = *src[i]
		}
	}
}
