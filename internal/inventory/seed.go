package inventory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pairmatch/pairmatch/pkg/types"
)

// Snapshot is the YAML inventory file layout.
type Snapshot struct {
	Components   []types.Component         `yaml:"components"`
	Calibrations []types.SensorCalibration `yaml:"calibrations"`
}

// LoadFile reads a YAML inventory file.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("inventory: read file: %w", err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("inventory: parse yaml: %w", err)
	}
	if err := snap.validate(); err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	return &snap, nil
}

// validate checks identities and family tags. Measurement problems are left
// to the engine, which skips the offending record.
func (s *Snapshot) validate() error {
	seen := make(map[string]bool, len(s.Components))
	for i, c := range s.Components {
		if c.ID == "" {
			return fmt.Errorf("components[%d]: id is required", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("components[%d]: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = true
		if !c.Family.Valid() {
			return fmt.Errorf("components[%d] %q: unknown family %q", i, c.ID, c.Family)
		}
	}
	seen = make(map[string]bool, len(s.Calibrations))
	for i, cal := range s.Calibrations {
		if cal.ID == "" {
			return fmt.Errorf("calibrations[%d]: id is required", i)
		}
		if seen[cal.ID] {
			return fmt.Errorf("calibrations[%d]: duplicate id %q", i, cal.ID)
		}
		seen[cal.ID] = true
	}
	return nil
}
