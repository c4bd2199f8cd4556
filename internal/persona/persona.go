// Package persona defines the conversation personas agents can be
// seeded with.
package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type Persona struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Style       string   `json:"style,omitempty"`
	Interests   []string `json:"interests,omitempty"`
	Traits      []string `json:"traits,omitempty"`
}

// LoadFromFile reads a JSON array of personas and validates it.
func LoadFromFile(path string) ([]Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}

	var personas []Persona
	if err := json.Unmarshal(data, &personas); err != nil {
		return nil, fmt.Errorf("parse persona json: %w", err)
	}

	return NormalizeAndValidate(personas)
}

func NormalizeAndValidate(personas []Persona) ([]Persona, error) {
	if len(personas) == 0 {
		return nil, fmt.Errorf("at least one persona is required")
	}

	seen := make(map[string]struct{}, len(personas))
	out := make([]Persona, 0, len(personas))

	for i, p := range personas {
		p.ID = strings.TrimSpace(p.ID)
		p.Name = strings.TrimSpace(p.Name)
		p.Description = strings.TrimSpace(p.Description)
		p.Style = strings.TrimSpace(p.Style)

		if p.ID == "" {
			return nil, fmt.Errorf("persona[%d].id is required", i)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("persona[%d].name is required", i)
		}
		if p.Description == "" {
			return nil, fmt.Errorf("persona[%d].description is required", i)
		}
		if _, exists := seen[p.ID]; exists {
			return nil, fmt.Errorf("duplicate persona id: %s", p.ID)
		}
		seen[p.ID] = struct{}{}

		p.Interests = trimNonEmpty(p.Interests)
		p.Traits = trimNonEmpty(p.Traits)

		out = append(out, p)
	}

	return out, nil
}

// SystemMessage renders the persona as an agent system prompt.
func SystemMessage(p Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. %s", p.Name, p.Description)
	if p.Style != "" {
		fmt.Fprintf(&b, " Your conversational style: %s.", strings.TrimSuffix(p.Style, "."))
	}
	if len(p.Interests) > 0 {
		fmt.Fprintf(&b, " You are interested in %s.", strings.Join(p.Interests, ", "))
	}
	if len(p.Traits) > 0 {
		fmt.Fprintf(&b, " Character traits: %s.", strings.Join(p.Traits, ", "))
	}
	b.WriteString(" Stay in character and speak in first person.")
	return b.String()
}

func trimNonEmpty(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
