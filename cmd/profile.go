package main

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/reliefscope/needscan/internal/classify"
)

// analysisProfile is the optional per-run YAML sidecar: indicator
// orientations and fixed level thresholds.
type analysisProfile struct {
	// Orientation maps indicator name to +1 or -1. -1 flips indicators
	// where a lower raw value means more need (literacy, coverage rates).
	Orientation map[string]float64 `yaml:"orientation"`

	// Thresholds, when present, replace the quartile-derived level cutoffs.
	Thresholds *classify.Thresholds `yaml:"thresholds"`
}

// loadProfile reads an analysis profile. An empty path is not an error: it
// just means no orientations and quartile thresholds.
func loadProfile(path string) (*analysisProfile, error) {
	if path == "" {
		return &analysisProfile{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read profile %s", path)
	}

	var profile analysisProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, eris.Wrapf(err, "parse profile %s", path)
	}

	for name, sign := range profile.Orientation {
		if sign != 1 && sign != -1 {
			return nil, eris.Errorf("profile %s: orientation for %q must be 1 or -1, got %g", path, name, sign)
		}
	}
	return &profile, nil
}
