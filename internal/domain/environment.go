package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// DependencyVersion is either a version string ("latest", "1.0.5") or false,
// which excludes the package from the environment.
type DependencyVersion struct {
	Version  string
	Disabled bool
}

// Latest is the version requested when a dependency is set to true or left empty.
const Latest = "latest"

// Version builds an enabled dependency.
func Version(v string) DependencyVersion {
	return DependencyVersion{Version: v}
}

// Disabled builds an excluded dependency.
func Disabled() DependencyVersion {
	return DependencyVersion{Disabled: true}
}

// Pinned reports whether a concrete version was requested.
func (d DependencyVersion) Pinned() bool {
	return !d.Disabled && d.Version != "" && d.Version != Latest
}

// MarshalJSON encodes false or the version string.
func (d DependencyVersion) MarshalJSON() ([]byte, error) {
	if d.Disabled {
		return []byte("false"), nil
	}
	v := d.Version
	if v == "" {
		v = Latest
	}
	return json.Marshal(v)
}

// UnmarshalJSON accepts a string, true or false.
func (d *DependencyVersion) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "false":
		*d = Disabled()
		return nil
	case "true", "null":
		*d = Version(Latest)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("dependency version must be a string or false: %w", err)
	}
	*d = Version(s)
	return nil
}

// MarshalYAML encodes false or the version string.
func (d DependencyVersion) MarshalYAML() (interface{}, error) {
	if d.Disabled {
		return false, nil
	}
	if d.Version == "" {
		return Latest, nil
	}
	return d.Version, nil
}

// UnmarshalYAML accepts a scalar string, true or false.
func (d *DependencyVersion) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: dependency version must be a scalar", node.Line)
	}
	if node.Tag == "!!bool" {
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		if b {
			*d = Version(Latest)
		} else {
			*d = Disabled()
		}
		return nil
	}
	*d = Version(node.Value)
	return nil
}

// EnvironmentSpec describes a compiler workspace. Its hash is the cache key.
type EnvironmentSpec struct {
	Dependencies      map[string]DependencyVersion `json:"dependencies" yaml:"dependencies"`
	SourceDirectories []string                     `json:"sourceDirectories" yaml:"source-directories"`
}

// Hash returns the content hash of the spec. Map keys are encoded sorted, so
// equal specs always hash equally.
func (s EnvironmentSpec) Hash() string {
	deps := s.Dependencies
	if deps == nil {
		deps = map[string]DependencyVersion{}
	}
	dirs := s.SourceDirectories
	if dirs == nil {
		dirs = []string{}
	}
	raw, _ := json.Marshal(struct {
		Dependencies      map[string]DependencyVersion `json:"dependencies"`
		SourceDirectories []string                     `json:"sourceDirectories"`
	}{deps, dirs})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:16])
}

// EnabledDependencies lists the packages to install, sorted by name.
func (s EnvironmentSpec) EnabledDependencies() []string {
	var names []string
	for name, version := range s.Dependencies {
		if !version.Disabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Merge layers other over s: dependencies override by name, source
// directories are appended without duplicates.
func (s EnvironmentSpec) Merge(other EnvironmentSpec) EnvironmentSpec {
	out := EnvironmentSpec{Dependencies: map[string]DependencyVersion{}}
	for name, v := range s.Dependencies {
		out.Dependencies[name] = v
	}
	for name, v := range other.Dependencies {
		out.Dependencies[name] = v
	}
	seen := map[string]bool{}
	for _, dir := range append(append([]string(nil), s.SourceDirectories...), other.SourceDirectories...) {
		if seen[dir] {
			continue
		}
		seen[dir] = true
		out.SourceDirectories = append(out.SourceDirectories, dir)
	}
	return out
}

// EnvironmentStatus is the lifecycle state of a workspace.
type EnvironmentStatus string

const (
	EnvironmentChanging EnvironmentStatus = "changing"
	EnvironmentReady    EnvironmentStatus = "ready"
	EnvironmentError    EnvironmentStatus = "error"
)

// Valid reports whether s is one of the known statuses.
func (s EnvironmentStatus) Valid() bool {
	switch s {
	case EnvironmentChanging, EnvironmentReady, EnvironmentError:
		return true
	default:
		return false
	}
}

// EnvironmentMetadata is persisted next to a workspace and only mutated
// while holding the workspace lock.
type EnvironmentMetadata struct {
	Status       EnvironmentStatus `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
	UsedAt       time.Time         `json:"usedAt"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
}

// Environment is a provisioned workspace keyed by its spec hash.
type Environment struct {
	Spec             EnvironmentSpec
	WorkingDirectory string
	Metadata         EnvironmentMetadata
}

// ProgramsDirectory is where program artifacts for this environment live.
func (e Environment) ProgramsDirectory() string {
	return filepath.Join(e.WorkingDirectory, ProgramsDirName)
}

// EnvironmentSummary describes a cached workspace for listings.
type EnvironmentSummary struct {
	Hash         string
	Directory    string
	Metadata     EnvironmentMetadata
	ProgramCount int
	SizeBytes    int64
}
