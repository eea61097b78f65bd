package batch

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vertextoedge/artifact-fetcher/internal/domain"
)

// Manifest lists artifacts to fetch in order
type Manifest struct {
	ContinueOnError bool       `yaml:"continue_on_error"`
	Artifacts       []Artifact `yaml:"artifacts"`
}

// Artifact is one file to fetch
type Artifact struct {
	Name     string   `yaml:"name"`
	URL      string   `yaml:"url"`
	Mirrors  []string `yaml:"mirrors"`
	Dest     string   `yaml:"dest"`
	SHA256   string   `yaml:"sha256"`
	Segments int      `yaml:"segments"`
}

// Sources returns the primary URL followed by the mirrors
func (a Artifact) Sources() []string {
	sources := make([]string, 0, len(a.Mirrors)+1)
	if a.URL != "" {
		sources = append(sources, a.URL)
	}
	for _, m := range a.Mirrors {
		if m != "" && m != a.URL {
			sources = append(sources, m)
		}
	}
	return sources
}

// DisplayName returns the name, or the destination when unnamed
func (a Artifact) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return filepath.Base(a.Dest)
}

// LoadManifest reads a YAML manifest. Relative destinations are resolved
// against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i := range m.Artifacts {
		if !filepath.IsAbs(m.Artifacts[i].Dest) {
			m.Artifacts[i].Dest = filepath.Join(base, m.Artifacts[i].Dest)
		}
	}
	return m, nil
}

// ParseManifest decodes and validates a YAML manifest
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks every artifact has a source and a destination
func (m *Manifest) Validate() error {
	if len(m.Artifacts) == 0 {
		return fmt.Errorf("%w: manifest has no artifacts", domain.ErrInvalidInput)
	}

	seen := make(map[string]bool, len(m.Artifacts))
	for i, a := range m.Artifacts {
		if len(a.Sources()) == 0 {
			return fmt.Errorf("%w: artifact %d has no url or mirrors", domain.ErrInvalidInput, i)
		}
		if a.Dest == "" {
			return fmt.Errorf("%w: artifact %d has no dest", domain.ErrInvalidInput, i)
		}
		if seen[a.Dest] {
			return fmt.Errorf("%w: duplicate dest %s", domain.ErrInvalidInput, a.Dest)
		}
		seen[a.Dest] = true
		if a.Segments < 0 {
			return fmt.Errorf("%w: artifact %d has negative segments", domain.ErrInvalidInput, i)
		}
	}
	return nil
}
