package prompt

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/patchlens/patchlens/pkg/errors"
)

// Profile is an optional YAML overlay for the review prompt. Either field
// may be omitted; omitted fields keep their defaults.
type Profile struct {
	// Template replaces the built-in prompt template. It must reference
	// {{.Diff}} so the diff has somewhere to land.
	Template string `yaml:"template"`

	// FocusAreas replace the default review dimensions.
	FocusAreas []string `yaml:"focus_areas"`
}

// LoadProfile reads and validates a prompt profile file
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindConfigInvalid, "failed to read prompt profile", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, errors.Wrap(errors.KindConfigInvalid, "failed to parse prompt profile", err)
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Validate checks profile invariants
func (p *Profile) Validate() error {
	if p.Template != "" && !strings.Contains(p.Template, "{{.Diff}}") {
		return errors.New(errors.KindConfigInvalid, "prompt template must contain the {{.Diff}} placeholder")
	}
	for i, area := range p.FocusAreas {
		if strings.TrimSpace(area) == "" {
			return errors.Newf(errors.KindConfigInvalid, "focus area %d is empty", i+1)
		}
	}
	return nil
}
