package directory

import (
	"fmt"
	"os"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"gopkg.in/yaml.v3"
)

// Seed is the startup data file: the agent roster and the contact directory
type Seed struct {
	Agents   []types.RosterEntry `yaml:"agents"`
	Contacts []types.Contact     `yaml:"contacts"`
}

// LoadSeed reads and validates a YAML seed file
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed: %w", err)
	}

	seed := &Seed{}
	if err := yaml.Unmarshal(data, seed); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}

	if err := seed.validate(); err != nil {
		return nil, err
	}
	return seed, nil
}

func (s *Seed) validate() error {
	seen := make(map[string]bool, len(s.Agents))
	for i, a := range s.Agents {
		if a.AgentID == "" {
			return fmt.Errorf("agents[%d].id is required", i)
		}
		if seen[a.AgentID] {
			return fmt.Errorf("duplicate agent id %q", a.AgentID)
		}
		seen[a.AgentID] = true
	}

	ids := make(map[string]bool, len(s.Contacts))
	for i, c := range s.Contacts {
		if c.ContactID == "" {
			return fmt.Errorf("contacts[%d].id is required", i)
		}
		if ids[c.ContactID] {
			return fmt.Errorf("duplicate contact id %q", c.ContactID)
		}
		ids[c.ContactID] = true
	}
	return nil
}
