// Package ai provides computer opponents: difficulty profiles loaded from
// YAML and move strategies, optionally backed by Lua scripts.
package ai

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is a difficulty level the bot can play at.
type Profile struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Script is a Lua file name relative to the scripts directory.
	// Empty means the built-in strategy.
	Script           string `yaml:"script"`
	InstructionLimit int    `yaml:"instruction_limit"`
	Default          bool   `yaml:"default"`
}

// Validate checks required fields.
func (p *Profile) Validate() error {
	var errs []string
	if p.ID == "" {
		errs = append(errs, "id must not be empty")
	}
	if strings.ContainsAny(p.ID, " \t") {
		errs = append(errs, fmt.Sprintf("id %q must not contain whitespace", p.ID))
	}
	if p.Name == "" {
		errs = append(errs, "name must not be empty")
	}
	if p.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("instruction_limit must be >= 0, got %d", p.InstructionLimit))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// LoadProfiles reads every *.yaml file in dir as one Profile.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns the profiles sorted by ID, or an error naming the
// first file that fails to parse or validate.
func LoadProfiles(dir string) ([]*Profile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading ai profile dir %q: %w", dir, err)
	}
	var out []*Profile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var p Profile
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("validating %q: %w", path, err)
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
