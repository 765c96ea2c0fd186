// Package provision seeds the role and permission catalog from a
// declarative table and can reset the store for reseeding.
package provision

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownAction is returned when a role structure uses an action
	// letter that has no entry in the action map.
	ErrUnknownAction = errors.New("provision: unknown action letter")

	// ErrInvalidConfig is returned for structurally invalid input.
	ErrInvalidConfig = errors.New("provision: invalid config")
)

// Structure maps role name to module name to comma-separated action
// letters, e.g. {"admin": {"users": "c,r,u,d"}}.
type Structure map[string]map[string]string

// ActionMap maps action letters to action names.
type ActionMap map[string]string

// DefaultActionMap returns the CRUD letter mapping.
func DefaultActionMap() ActionMap {
	return ActionMap{
		"c": "create",
		"r": "read",
		"u": "update",
		"d": "delete",
	}
}

// Config is the declarative seeding input.
type Config struct {
	Roles   Structure `json:"role_structure" yaml:"role_structure"`
	Actions ActionMap `json:"permissions_map" yaml:"permissions_map"`
}

// actions returns the configured map, falling back to DefaultActionMap.
func (c *Config) actions() ActionMap {
	if len(c.Actions) == 0 {
		return DefaultActionMap()
	}
	return c.Actions
}

// Load decodes a YAML (or JSON) seeding config.
func Load(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// LoadFile reads a seeding config from disk.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("provision: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}
