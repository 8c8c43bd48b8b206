package ai

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe-bot/internal/scripting"
)

// BuiltinProfile is used when no profile files are configured.
var BuiltinProfile = &Profile{
	ID:          "builtin",
	Name:        "Builtin",
	Description: "plays the first free cell",
	Default:     true,
}

// Registry resolves difficulty names to strategies.
// It is read-only after construction and safe for concurrent use.
type Registry struct {
	profiles   map[string]*Profile
	strategies map[string]Strategy
	def        string
}

// NewRegistry loads each profile's script from scriptsDir into scripts
// and builds its strategy. Profiles without a script use FirstFree.
//
// Precondition: scripts and logger must be non-nil when any profile names a script.
// Postcondition: Returns an error on duplicate IDs, more than one default,
// or a script that fails to load. With no profiles, BuiltinProfile is
// registered as the default.
func NewRegistry(profiles []*Profile, scripts *scripting.Manager, scriptsDir string, logger *zap.Logger) (*Registry, error) {
	if len(profiles) == 0 {
		profiles = []*Profile{BuiltinProfile}
	}
	r := &Registry{
		profiles:   make(map[string]*Profile, len(profiles)),
		strategies: make(map[string]Strategy, len(profiles)),
	}
	for _, p := range profiles {
		if _, exists := r.profiles[p.ID]; exists {
			return nil, fmt.Errorf("duplicate ai profile id %q", p.ID)
		}
		if p.Default {
			if r.def != "" {
				return nil, fmt.Errorf("ai profiles %q and %q are both marked default", r.def, p.ID)
			}
			r.def = p.ID
		}
		r.profiles[p.ID] = p

		if p.Script == "" {
			r.strategies[p.ID] = FirstFree{}
			continue
		}
		path := filepath.Join(scriptsDir, p.Script)
		if err := scripts.LoadFile(p.ID, path, p.InstructionLimit); err != nil {
			return nil, fmt.Errorf("loading script for ai profile %q: %w", p.ID, err)
		}
		r.strategies[p.ID] = NewScripted(scripts, p.ID, FirstFree{}, logger)
	}
	if r.def == "" {
		r.def = profiles[0].ID
	}
	return r, nil
}

// Default returns the default profile.
func (r *Registry) Default() *Profile {
	return r.profiles[r.def]
}

// Get returns the profile with id.
func (r *Registry) Get(id string) (*Profile, bool) {
	p, ok := r.profiles[id]
	return p, ok
}

// Strategy returns the strategy for profile id.
func (r *Registry) Strategy(id string) (Strategy, bool) {
	s, ok := r.strategies[id]
	return s, ok
}

// IDs returns all profile IDs in no particular order.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		out = append(out, id)
	}
	return out
}
