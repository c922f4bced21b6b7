// Package questions provides interview questions: the generator contract,
// a YAML fallback bank and helpers for parsing model output.
package questions

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lexiqai/interview-coach/internal/model"
)

//go:embed bank.yaml
var defaultBankYAML []byte

// builtin is the last resort when a bank has nothing for a profile.
var builtin = []model.Question{
	{Text: "What is React and why is it used?", Difficulty: model.DifficultyEasy},
	{Text: "Explain the concept of state in React.", Difficulty: model.DifficultyMedium},
}

// Bank holds the job profiles and their fallback questions.
type Bank struct {
	DefaultProfile string                      `yaml:"default_profile"`
	Profiles       []model.Profile             `yaml:"profiles"`
	Questions      map[string][]model.Question `yaml:"questions"`
}

// LoadBank reads a bank from path, or returns the embedded bank when path
// is empty.
func LoadBank(path string) (*Bank, error) {
	if path == "" {
		return ParseBank(defaultBankYAML)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank %s: %w", path, err)
	}
	return ParseBank(data)
}

// ParseBank decodes and validates a YAML bank.
func ParseBank(data []byte) (*Bank, error) {
	var b Bank
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("invalid question bank: %w", err)
	}
	return &b, nil
}

// DefaultBank returns the embedded bank.
func DefaultBank() *Bank {
	b, err := ParseBank(defaultBankYAML)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Bank) validate() error {
	if len(b.Profiles) == 0 {
		return fmt.Errorf("at least one profile is required")
	}

	seen := make(map[string]bool, len(b.Profiles))
	for i, p := range b.Profiles {
		if p.ID == "" {
			return fmt.Errorf("profile %d must have an id", i)
		}
		if p.Name == "" {
			return fmt.Errorf("profile %s must have a name", p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate profile id %s", p.ID)
		}
		seen[p.ID] = true
	}

	if b.DefaultProfile != "" && !seen[b.DefaultProfile] {
		return fmt.Errorf("default profile %s is not defined", b.DefaultProfile)
	}

	for id, qs := range b.Questions {
		for i := range qs {
			if strings.TrimSpace(qs[i].Text) == "" {
				return fmt.Errorf("question %d of %s is empty", i, id)
			}
			qs[i].Difficulty = model.ParseDifficulty(string(qs[i].Difficulty))
		}
	}
	return nil
}

// Profile looks up a profile by id.
func (b *Bank) Profile(id string) (model.Profile, bool) {
	for _, p := range b.Profiles {
		if p.ID == id {
			return p, true
		}
	}
	return model.Profile{}, false
}

// Fallback returns the fallback questions for a profile. The result is never
// empty: unknown profiles use the default profile, then a built-in set.
func (b *Bank) Fallback(profileID string) []model.Question {
	for _, id := range []string{profileID, b.DefaultProfile} {
		if qs := b.Questions[id]; len(qs) > 0 {
			out := make([]model.Question, len(qs))
			copy(out, qs)
			return out
		}
	}

	out := make([]model.Question, len(builtin))
	copy(out, builtin)
	return out
}
