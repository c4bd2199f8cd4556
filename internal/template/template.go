// Package template defines reusable two-role conversation setups and a
// reloadable library of them.
package template

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Template pairs two roles with their system messages and an opening
// message spoken to the first role.
type Template struct {
	Name           string            `yaml:"name" json:"name"`
	Description    string            `yaml:"description" json:"description"`
	Roles          []string          `yaml:"roles" json:"roles"`
	Start          string            `yaml:"start" json:"start"`
	SystemMessages map[string]string `yaml:"system_messages" json:"system_messages"`
}

func (t Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("template name is required")
	}
	if len(t.Roles) != 2 {
		return fmt.Errorf("template %q: exactly two roles are required", t.Name)
	}
	first := strings.TrimSpace(t.Roles[0])
	second := strings.TrimSpace(t.Roles[1])
	if first == "" || second == "" {
		return fmt.Errorf("template %q: role names must not be empty", t.Name)
	}
	if strings.EqualFold(first, second) {
		return fmt.Errorf("template %q: roles must be distinct", t.Name)
	}
	if strings.TrimSpace(t.Start) == "" {
		return fmt.Errorf("template %q: start message is required", t.Name)
	}
	for _, role := range t.Roles {
		if strings.TrimSpace(t.SystemMessages[role]) == "" {
			return fmt.Errorf("template %q: missing system message for role %q", t.Name, role)
		}
	}
	return nil
}

// Library is a named set of templates, seeded with the builtins and
// extendable from YAML files. Safe for concurrent use; the watcher
// reloads through the same lock.
type Library struct {
	mu    sync.RWMutex
	items map[string]Template
	names []string
}

func NewLibrary() *Library {
	l := &Library{items: make(map[string]Template)}
	for _, t := range Builtins() {
		l.put(t)
	}
	return l
}

func (l *Library) Get(name string) (Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.items[name]
	return t, ok
}

// Names returns template names in insertion order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *Library) Add(t Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.put(t)
	return nil
}

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// LoadFile merges templates from a YAML file into the library,
// overriding same-named entries. The whole file is validated before
// anything is applied.
func (l *Library) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read template file: %w", err)
	}

	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parse template yaml: %w", err)
	}
	if len(file.Templates) == 0 {
		return 0, errors.New("template file contains no templates")
	}

	for _, t := range file.Templates {
		if err := t.Validate(); err != nil {
			return 0, err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range file.Templates {
		l.put(t)
	}
	return len(file.Templates), nil
}

// put requires l.mu held for writing (or exclusive construction).
func (l *Library) put(t Template) {
	if _, exists := l.items[t.Name]; !exists {
		l.names = append(l.names, t.Name)
	}
	l.items[t.Name] = t
}
