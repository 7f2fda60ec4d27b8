package platform

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/tailscale/hujson"
)

//go:embed platforms.jsonc
var builtinCatalog []byte

// Universal subdirectory names understood by every platform definition.
const (
	SubdirRules    = "rules"
	SubdirCommands = "commands"
	SubdirAgents   = "agents"
	SubdirSkills   = "skills"
)

// UniversalSubdirs lists the registry top-level directories that are mapped
// per platform, in display order.
var UniversalSubdirs = []string{SubdirRules, SubdirCommands, SubdirAgents, SubdirSkills}

// IsUniversalSubdir reports whether name is one of [UniversalSubdirs].
func IsUniversalSubdir(name string) bool {
	for _, s := range UniversalSubdirs {
		if s == name {
			return true
		}
	}
	return false
}

// ExtRule rewrites a package-side extension into a workspace-side one.
type ExtRule struct {
	Package   string `json:"package"`
	Workspace string `json:"workspace"`
}

// Subdir describes where one universal subdir lands for a platform.
type Subdir struct {
	Path   string    `json:"path"`             // workspace-relative, slash separated
	Exts   []string  `json:"exts,omitempty"`   // allowed workspace extensions; empty = any
	Rename []ExtRule `json:"rename,omitempty"` // package ext -> workspace ext
}

// Definition is one platform entry of the catalog.
type Definition struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	RootDir  string            `json:"rootDir"`
	RootFile string            `json:"rootFile,omitempty"`
	Detect   []string          `json:"detect,omitempty"`
	Subdirs  map[string]Subdir `json:"subdirs"`
}

// DetectPaths returns the workspace-relative paths whose presence signals the
// platform is in use. Defaults to the root dir and root file.
func (d Definition) DetectPaths() []string {
	if len(d.Detect) > 0 {
		return d.Detect
	}
	paths := []string{d.RootDir}
	if d.RootFile != "" {
		paths = append(paths, d.RootFile)
	}
	return paths
}

type catalogFile struct {
	Platforms []Definition `json:"platforms"`
}

// Catalog is the immutable set of known platforms.
type Catalog struct {
	defs   map[string]Definition
	order  []string
	byRoot map[string]string
}

// ErrUnknownPlatform is returned when a platform id is not in the catalog.
var ErrUnknownPlatform = errors.New("unknown platform")

// Load builds the catalog from the embedded defaults, overlaid with the JSONC
// file at overridePath when it is non-empty and exists. Override entries
// replace built-in entries with the same id and append new ones.
func Load(overridePath string) (*Catalog, error) {
	defs, err := parseCatalog(builtinCatalog, "builtin platforms.jsonc")
	if err != nil {
		return nil, err
	}

	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		switch {
		case err == nil:
			extra, err := parseCatalog(data, overridePath)
			if err != nil {
				return nil, err
			}
			defs = mergeDefinitions(defs, extra)
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading platform overrides %s: %w", overridePath, err)
		}
	}

	return New(defs)
}

// MustLoadBuiltin returns the embedded catalog and panics if it is invalid.
// Intended for tests and tools that do not support overrides.
func MustLoadBuiltin() *Catalog {
	c, err := Load("")
	if err != nil {
		panic(err)
	}
	return c
}

// New validates defs and returns a catalog preserving their order.
func New(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs:   make(map[string]Definition, len(defs)),
		byRoot: make(map[string]string, len(defs)),
	}
	for _, d := range defs {
		if err := validateDefinition(d); err != nil {
			return nil, err
		}
		if _, dup := c.defs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate platform id %q", d.ID)
		}
		root := path.Clean(d.RootDir)
		if other, dup := c.byRoot[root]; dup {
			return nil, fmt.Errorf("platforms %q and %q share root dir %q", other, d.ID, root)
		}
		c.defs[d.ID] = d
		c.byRoot[root] = d.ID
		c.order = append(c.order, d.ID)
	}
	return c, nil
}

func parseCatalog(data []byte, origin string) ([]Definition, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", origin, err)
	}
	var f catalogFile
	if err := json.Unmarshal(std, &f); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", origin, err)
	}
	return f.Platforms, nil
}

func mergeDefinitions(base, extra []Definition) []Definition {
	out := make([]Definition, len(base))
	copy(out, base)
	for _, d := range extra {
		replaced := false
		for i := range out {
			if out[i].ID == d.ID {
				out[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, d)
		}
	}
	return out
}

func validateDefinition(d Definition) error {
	if d.ID == "" {
		return fmt.Errorf("platform definition missing id")
	}
	if strings.ContainsAny(d.ID, "./ ") {
		return fmt.Errorf("platform id %q must not contain '.', '/' or spaces", d.ID)
	}
	if d.RootDir == "" {
		return fmt.Errorf("platform %q missing rootDir", d.ID)
	}
	for name, sd := range d.Subdirs {
		if !IsUniversalSubdir(name) {
			return fmt.Errorf("platform %q: unknown subdir %q", d.ID, name)
		}
		if sd.Path == "" {
			return fmt.Errorf("platform %q: subdir %q has empty path", d.ID, name)
		}
		for _, ext := range sd.Exts {
			if !strings.HasPrefix(ext, ".") {
				return fmt.Errorf("platform %q: subdir %q extension %q must start with '.'", d.ID, name, ext)
			}
		}
		for _, r := range sd.Rename {
			if !strings.HasPrefix(r.Package, ".") || !strings.HasPrefix(r.Workspace, ".") {
				return fmt.Errorf("platform %q: subdir %q has invalid rename rule %+v", d.ID, name, r)
			}
		}
	}
	return nil
}

// Get returns the definition for id.
func (c *Catalog) Get(id string) (Definition, bool) {
	d, ok := c.defs[id]
	return d, ok
}

// IDs returns all platform ids in catalog order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// IsPlatformID reports whether s names a known platform.
func (c *Catalog) IsPlatformID(s string) bool {
	_, ok := c.defs[s]
	return ok
}

// ByRootDir returns the platform whose root directory is dir.
func (c *Catalog) ByRootDir(dir string) (Definition, bool) {
	id, ok := c.byRoot[path.Clean(filepath.ToSlash(dir))]
	if !ok {
		return Definition{}, false
	}
	return c.defs[id], true
}

// Detect returns the ids of platforms with at least one detection path
// present in workspace, in catalog order.
func (c *Catalog) Detect(workspace string) []string {
	var found []string
	for _, id := range c.order {
		for _, p := range c.defs[id].DetectPaths() {
			if _, err := os.Stat(filepath.Join(workspace, filepath.FromSlash(p))); err == nil {
				found = append(found, id)
				break
			}
		}
	}
	return found
}

// Validate checks that every id is known. The error for an unknown id
// includes close matches.
func (c *Catalog) Validate(ids []string) error {
	for _, id := range ids {
		if c.IsPlatformID(id) {
			continue
		}
		if s := c.Suggest(id); len(s) > 0 {
			return fmt.Errorf("%w %q (did you mean %s?)", ErrUnknownPlatform, id, strings.Join(s, ", "))
		}
		return fmt.Errorf("%w %q", ErrUnknownPlatform, id)
	}
	return nil
}

// Suggest returns known platform ids that fuzzily match id, best first.
func (c *Catalog) Suggest(id string) []string {
	matches := fuzzy.Find(id, c.order)
	var out []string
	for _, m := range matches {
		out = append(out, m.Str)
		if len(out) == 3 {
			break
		}
	}
	return out
}

// IsProtectedDir reports whether dir (workspace-relative) is a platform root
// directory or one of a platform's subdir paths. Such directories are shared
// between packages and are never tracked or removed wholesale.
func (c *Catalog) IsProtectedDir(dir string) bool {
	dir = path.Clean(filepath.ToSlash(dir))
	if _, ok := c.byRoot[dir]; ok {
		return true
	}
	for _, id := range c.order {
		for _, sd := range c.defs[id].Subdirs {
			if path.Clean(sd.Path) == dir {
				return true
			}
		}
	}
	return false
}

// IsRootDir reports whether dir (workspace-relative) is a platform root directory.
func (c *Catalog) IsRootDir(dir string) bool {
	_, ok := c.byRoot[path.Clean(filepath.ToSlash(dir))]
	return ok
}

// SortIDs orders ids by catalog position; unknown ids sort last alphabetically.
func (c *Catalog) SortIDs(ids []string) {
	pos := make(map[string]int, len(c.order))
	for i, id := range c.order {
		pos[id] = i
	}
	sort.SliceStable(ids, func(i, j int) bool {
		pi, iok := pos[ids[i]]
		pj, jok := pos[ids[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		default:
			return ids[i] < ids[j]
		}
	})
}
