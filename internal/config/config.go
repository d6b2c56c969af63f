package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadSettings reads and parses the supervisor settings file at path.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	// LevelStartTimeoutSec is seeded before decoding so that an explicit 0
	// in the file (no wait) survives, while an absent field keeps 30.
	s := Settings{LevelStartTimeoutSec: 30}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing settings yaml: %w", err)
	}

	applySettingsDefaults(&s)
	return &s, nil
}

// applySettingsDefaults sets default values for unset Settings fields.
func applySettingsDefaults(s *Settings) {
	if s.ManifestExt == "" {
		s.ManifestExt = ".yaml"
	}
	if s.ManifestFolder == "" {
		s.ManifestFolder = "./services"
	}
	if s.HTTPProbeTimeoutMS == 0 {
		s.HTTPProbeTimeoutMS = 200
	}
	if s.StateFilePath == "" {
		s.StateFilePath = "./agld.state"
	}
}

// applyManifestDefaults sets default values for unset Manifest fields.
func applyManifestDefaults(m *Manifest) {
	if m.StopRunAbortTimeoutSec == 0 {
		m.StopRunAbortTimeoutSec = defaultStopRunAbortTimeoutSec
	}
	if m.WatchDelaySec == 0 {
		m.WatchDelaySec = defaultWatchDelaySec
	}
	if m.RedirectLogFile != "" && m.RedirectLogRotateBytes == 0 {
		m.RedirectLogRotateBytes = defaultRedirectLogRotateBytes
	}
	if m.OS == "" {
		m.OS = OSAny
	}
}

// ParseManifest parses a single manifest document from YAML bytes.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest yaml: %w", err)
	}
	applyManifestDefaults(&m)
	if err := validateManifest(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Discover enumerates manifest files under folder matching ext, parses each,
// and rejects duplicate (case-insensitive) names across the whole set.
func Discover(folder, ext string) ([]*Manifest, error) {
	pattern := filepath.Join(folder, "*"+ext)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("globbing manifest folder: %w", err)
	}
	sort.Strings(matches)

	manifests := make([]*Manifest, 0, len(matches))
	seen := make(map[string]string) // lower(name) -> source file

	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading manifest %s: %w", path, err)
		}
		m, err := ParseManifest(data)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, err)
		}
		m.Path = path

		key := strings.ToLower(m.Name)
		if existing, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate service name %q: %s and %s", m.Name, existing, path)
		}
		seen[key] = path

		manifests = append(manifests, m)
	}

	return manifests, nil
}
