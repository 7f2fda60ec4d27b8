package registry

import "github.com/agentx-labs/agentpkg/internal/manifest"

// File is one content file of a package version.
type File struct {
	Path    string // slash separated, relative to the version directory
	Content []byte
}

// Package is a fully loaded package version.
type Package struct {
	Name     string
	Version  string
	Dir      string // absolute version directory
	Manifest *manifest.Manifest
	Files    []File
}

// Paths returns the package file paths in load order.
func (p *Package) Paths() []string {
	out := make([]string, len(p.Files))
	for i, f := range p.Files {
		out[i] = f.Path
	}
	return out
}
