package manifest

import (
	"strings"

	"golang.org/x/text/cases"
)

// Unversioned is the version sentinel for packages whose manifest omits a
// version. It never satisfies a non-wildcard range.
const Unversioned = "unversioned"

// Dependency is one entry of packages or dev-packages. Version holds a
// semver range; empty means any version.
type Dependency struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
}

// Manifest is the parsed form of agentpkg.yml.
type Manifest struct {
	Name        string       `yaml:"name" json:"name"`
	Version     string       `yaml:"version,omitempty" json:"version,omitempty"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Packages    []Dependency `yaml:"packages,omitempty" json:"packages,omitempty"`
	DevPackages []Dependency `yaml:"dev-packages,omitempty" json:"dev-packages,omitempty"`

	// Metadata keeps any other top-level keys so a rewrite does not drop them.
	Metadata map[string]interface{} `yaml:",inline" json:"-"`
}

// NormalizeName case-folds a package name. Package names are unique per
// registry regardless of case.
func NormalizeName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// EffectiveVersion returns the manifest version or [Unversioned].
func (m *Manifest) EffectiveVersion() string {
	if strings.TrimSpace(m.Version) == "" {
		return Unversioned
	}
	return m.Version
}

// Find looks up a dependency by name in packages, then dev-packages.
func (m *Manifest) Find(name string) (Dependency, bool, bool) {
	key := NormalizeName(name)
	for _, d := range m.Packages {
		if NormalizeName(d.Name) == key {
			return d, false, true
		}
	}
	for _, d := range m.DevPackages {
		if NormalizeName(d.Name) == key {
			return d, true, true
		}
	}
	return Dependency{}, false, false
}

// AddDependency inserts or updates name with the given range, moving it
// between packages and dev-packages when dev changes.
func (m *Manifest) AddDependency(name, versionRange string, dev bool) {
	m.RemoveDependency(name)
	dep := Dependency{Name: name, Version: versionRange}
	if dev {
		m.DevPackages = append(m.DevPackages, dep)
	} else {
		m.Packages = append(m.Packages, dep)
	}
}

// RemoveDependency drops name from both lists. Reports whether it was present.
func (m *Manifest) RemoveDependency(name string) bool {
	key := NormalizeName(name)
	removed := false
	filter := func(deps []Dependency) []Dependency {
		out := deps[:0]
		for _, d := range deps {
			if NormalizeName(d.Name) == key {
				removed = true
				continue
			}
			out = append(out, d)
		}
		return out
	}
	m.Packages = filter(m.Packages)
	m.DevPackages = filter(m.DevPackages)
	return removed
}

// Ranges returns normalized name -> range for packages and dev-packages.
// Entries without a range map to "".
func (m *Manifest) Ranges() map[string]string {
	out := make(map[string]string, len(m.Packages)+len(m.DevPackages))
	for _, d := range m.DevPackages {
		out[NormalizeName(d.Name)] = d.Version
	}
	for _, d := range m.Packages {
		out[NormalizeName(d.Name)] = d.Version
	}
	return out
}

// Dependencies returns packages followed by dev-packages when includeDev is set.
func (m *Manifest) Dependencies(includeDev bool) []Dependency {
	deps := make([]Dependency, 0, len(m.Packages)+len(m.DevPackages))
	deps = append(deps, m.Packages...)
	if includeDev {
		deps = append(deps, m.DevPackages...)
	}
	return deps
}
