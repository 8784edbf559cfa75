// Package persona loads the behavioral personas and the initial prompt that
// seed every conversation.
package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var builtinCatalog []byte

// ErrUnknownPersona is returned for an id that is not in the catalog.
var ErrUnknownPersona = errors.New("unknown persona")

// ID identifies a persona. Values handed out by a Catalog are always valid
// for that catalog.
type ID string

// Persona is a named behavioral identity.
type Persona struct {
	ID          ID     `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Prompt      string `yaml:"prompt"`
}

// DisplayName returns the persona's name, falling back to its id.
func (p Persona) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return string(p.ID)
}

type catalogFile struct {
	Default           ID        `yaml:"default"`
	InitialPrompt     string    `yaml:"initial_prompt"`
	InitialPromptFile string    `yaml:"initial_prompt_file"`
	Personas          []Persona `yaml:"personas"`
}

// Catalog is the set of personas known for the session.
type Catalog struct {
	personas      map[ID]Persona
	defaultID     ID
	initialPrompt string
}

// LoadDefault returns the builtin catalog.
func LoadDefault() (*Catalog, error) {
	return parse(builtinCatalog, "")
}

// Load reads a catalog file. An empty path selects the builtin catalog.
// initial_prompt_file is resolved relative to the catalog file.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return LoadDefault()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona catalog: %w", err)
	}
	c, err := parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func parse(data []byte, baseDir string) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse persona catalog: %w", err)
	}
	if len(file.Personas) == 0 {
		return nil, errors.New("persona catalog defines no personas")
	}

	c := &Catalog{
		personas:      make(map[ID]Persona, len(file.Personas)),
		initialPrompt: strings.TrimSpace(file.InitialPrompt),
	}
	for i, p := range file.Personas {
		p.ID = ID(strings.TrimSpace(string(p.ID)))
		if p.ID == "" {
			return nil, fmt.Errorf("persona %d has no id", i)
		}
		if _, dup := c.personas[p.ID]; dup {
			return nil, fmt.Errorf("duplicate persona id %q", p.ID)
		}
		p.Prompt = strings.TrimSpace(p.Prompt)
		c.personas[p.ID] = p
	}

	c.defaultID = file.Default
	if c.defaultID == "" {
		c.defaultID = file.Personas[0].ID
	}
	if !c.Has(string(c.defaultID)) {
		return nil, fmt.Errorf("default persona %q is not defined", c.defaultID)
	}

	if file.InitialPromptFile != "" {
		promptPath := file.InitialPromptFile
		if !filepath.IsAbs(promptPath) && baseDir != "" {
			promptPath = filepath.Join(baseDir, promptPath)
		}
		text, err := os.ReadFile(promptPath)
		if err != nil {
			return nil, fmt.Errorf("read initial prompt: %w", err)
		}
		c.initialPrompt = strings.TrimSpace(string(text))
	}

	return c, nil
}

// InitialPrompt returns the prompt seeded at the start of a session.
func (c *Catalog) InitialPrompt() string {
	return c.initialPrompt
}

// Personas maps every persona id to its prompt text.
func (c *Catalog) Personas() map[string]string {
	out := make(map[string]string, len(c.personas))
	for id, p := range c.personas {
		out[string(id)] = p.Prompt
	}
	return out
}

// IDs returns the persona ids, sorted.
func (c *Catalog) IDs() []ID {
	ids := make([]ID, 0, len(c.personas))
	for id := range c.personas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// List returns the personas sorted by id.
func (c *Catalog) List() []Persona {
	ids := c.IDs()
	out := make([]Persona, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.personas[id])
	}
	return out
}

// Get looks up a persona by id.
func (c *Catalog) Get(id string) (Persona, bool) {
	p, ok := c.personas[ID(id)]
	return p, ok
}

// Has reports whether id names a persona in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.personas[ID(id)]
	return ok
}

// Resolve validates id and returns it as an ID.
func (c *Catalog) Resolve(id string) (ID, error) {
	id = strings.TrimSpace(id)
	if !c.Has(id) {
		return "", fmt.Errorf("%w: %q", ErrUnknownPersona, id)
	}
	return ID(id), nil
}

// Default returns the catalog's default persona.
func (c *Catalog) Default() ID {
	return c.defaultID
}
