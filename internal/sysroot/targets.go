package sysroot

import (
	_ "embed"
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
)

//go:embed targets.toml
var embeddedTargets []byte

const defaultBundleName = "sysroot.tar"

// Target is one packaging profile: what to pull in and what the target
// system already provides.
type Target struct {
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Arch        string   `toml:"arch"`
	Bundle      string   `toml:"bundle"`
	Packages    []string `toml:"packages"`
	Exclude     []string `toml:"exclude"`
}

type targetFile struct {
	Targets []Target `toml:"target"`
}

// Targets returns the compiled-in profiles in file order.
func Targets() ([]Target, error) {
	return ParseTargets(embeddedTargets)
}

// ParseTargets decodes and validates a profile file.
func ParseTargets(data []byte) ([]Target, error) {
	var tf targetFile
	if err := toml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse targets: %w", err)
	}
	seen := make(map[string]bool)
	for i := range tf.Targets {
		t := &tf.Targets[i]
		if t.Name == "" {
			return nil, fmt.Errorf("target #%d has no name", i+1)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("duplicate target %q", t.Name)
		}
		seen[t.Name] = true
		if len(t.Packages) == 0 {
			return nil, fmt.Errorf("target %q lists no packages", t.Name)
		}
		if t.Bundle == "" {
			t.Bundle = defaultBundleName
		}
	}
	return tf.Targets, nil
}

// FindTarget looks up a compiled-in profile by name.
func FindTarget(name string) (Target, error) {
	targets, err := Targets()
	if err != nil {
		return Target{}, err
	}
	for _, t := range targets {
		if t.Name == name {
			return t, nil
		}
	}
	return Target{}, fmt.Errorf("unknown target %q", name)
}
