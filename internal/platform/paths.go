package platform

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	// ErrUnsupportedSubdir is returned when a platform has no mapping for a
	// universal subdir.
	ErrUnsupportedSubdir = errors.New("platform does not support subdir")
	// ErrExtensionNotAllowed is returned when the translated file extension is
	// not accepted by the platform subdir.
	ErrExtensionNotAllowed = errors.New("extension not allowed")
)

// UniversalPath is a parsed registry path such as rules/auth.cursor.md.
type UniversalPath struct {
	Subdir   string // universal subdir, e.g. "rules"
	RelPath  string // path below the subdir with any platform suffix removed
	Platform string // platform suffix, empty when the path applies to every platform

	// suffixSegment is the index into RelPath's segments that carried the
	// suffix, or -1. fileSuffix distinguishes auth.cursor.md (suffix before
	// the extension) from skills/foo.cursor/ (suffix on a directory).
	suffixSegment int
	fileSuffix    bool
}

// Base returns the universal path without its platform suffix, e.g.
// "rules/auth.md" for rules/auth.cursor.md.
func (u UniversalPath) Base() string {
	return u.Subdir + "/" + u.RelPath
}

// String reconstructs the registry path, re-inserting the platform suffix in
// the position it was parsed from.
func (u UniversalPath) String() string {
	if u.Platform == "" || u.suffixSegment < 0 {
		return u.Base()
	}
	segs := strings.Split(u.RelPath, "/")
	seg := segs[u.suffixSegment]
	if u.fileSuffix {
		ext := path.Ext(seg)
		segs[u.suffixSegment] = strings.TrimSuffix(seg, ext) + "." + u.Platform + ext
	} else {
		segs[u.suffixSegment] = seg + "." + u.Platform
	}
	return u.Subdir + "/" + strings.Join(segs, "/")
}

// FirstSegment returns the first component of RelPath and whether RelPath
// has further components below it (i.e. the first segment is a directory).
func (u UniversalPath) FirstSegment() (string, bool) {
	first, _, nested := strings.Cut(u.RelPath, "/")
	return first, nested
}

// ParseUniversalPath parses a slash-separated registry path. It returns false
// when the first segment is not a universal subdir or nothing follows it.
//
// Two suffix forms are recognized, directory first: skills/foo.cursor/SKILL.md
// and rules/auth.cursor.md. Only known platform ids count as suffixes.
func (c *Catalog) ParseUniversalPath(p string) (UniversalPath, bool) {
	p = strings.TrimPrefix(path.Clean(p), "/")
	subdir, rest, ok := strings.Cut(p, "/")
	if !ok || rest == "" || !IsUniversalSubdir(subdir) {
		return UniversalPath{}, false
	}

	u := UniversalPath{Subdir: subdir, RelPath: rest, suffixSegment: -1}
	segs := strings.Split(rest, "/")

	for i := 0; i < len(segs)-1; i++ {
		if base, id, ok := c.splitSuffix(segs[i]); ok {
			segs[i] = base
			u.Platform = id
			u.suffixSegment = i
			u.RelPath = strings.Join(segs, "/")
			return u, true
		}
	}

	last := len(segs) - 1
	name := segs[last]
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if base, id, ok := c.splitSuffix(stem); ok {
		segs[last] = base + ext
		u.Platform = id
		u.suffixSegment = last
		u.fileSuffix = true
		u.RelPath = strings.Join(segs, "/")
	}
	return u, true
}

// splitSuffix splits "name.platform" into ("name", "platform") when platform
// is a known id and name is non-empty.
func (c *Catalog) splitSuffix(s string) (string, string, bool) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	id := s[i+1:]
	if !c.IsPlatformID(id) {
		return "", "", false
	}
	return s[:i], id, true
}

// Target is a concrete workspace location. Both fields are workspace-relative
// and slash separated.
type Target struct {
	Dir  string
	File string
}

// ResolvePlatformPath maps a universal subdir and relative path onto the
// concrete workspace path for platformID, applying extension rename rules.
func (c *Catalog) ResolvePlatformPath(subdir, relPath, platformID string) (Target, error) {
	def, ok := c.defs[platformID]
	if !ok {
		return Target{}, fmt.Errorf("%w %q", ErrUnknownPlatform, platformID)
	}
	sd, ok := def.Subdirs[subdir]
	if !ok {
		return Target{}, fmt.Errorf("%w: %s has no %q mapping", ErrUnsupportedSubdir, platformID, subdir)
	}

	rel := ToWorkspaceExt(relPath, sd.Rename)
	if !extAllowed(rel, sd.Exts) {
		return Target{}, fmt.Errorf("%w: %s %s accepts %s, got %s",
			ErrExtensionNotAllowed, platformID, subdir, strings.Join(sd.Exts, ", "), path.Base(rel))
	}

	file := path.Join(sd.Path, rel)
	return Target{Dir: path.Dir(file), File: file}, nil
}

// SubdirPath returns the workspace-relative directory a universal subdir maps
// to for platformID.
func (c *Catalog) SubdirPath(subdir, platformID string) (string, bool) {
	def, ok := c.defs[platformID]
	if !ok {
		return "", false
	}
	sd, ok := def.Subdirs[subdir]
	if !ok {
		return "", false
	}
	return sd.Path, true
}

// ToUniversal maps a workspace-relative path back to its platform and
// universal path. The longest matching subdir path wins.
func (c *Catalog) ToUniversal(workspacePath string) (string, UniversalPath, bool) {
	workspacePath = strings.TrimPrefix(path.Clean(workspacePath), "/")

	var (
		bestID     string
		bestSubdir string
		best       Subdir
	)
	for _, id := range c.order {
		for name, sd := range c.defs[id].Subdirs {
			prefix := path.Clean(sd.Path) + "/"
			if !strings.HasPrefix(workspacePath, prefix) {
				continue
			}
			if len(sd.Path) > len(best.Path) {
				bestID, bestSubdir, best = id, name, sd
			}
		}
	}
	if bestID == "" {
		return "", UniversalPath{}, false
	}

	rel := strings.TrimPrefix(workspacePath, path.Clean(best.Path)+"/")
	rel = FromWorkspaceExt(rel, best.Rename)
	return bestID, UniversalPath{Subdir: bestSubdir, RelPath: rel, suffixSegment: -1}, true
}

// ToWorkspaceExt rewrites the extension of p using the package→workspace
// rules. The longest matching package extension wins; names already carrying
// the workspace extension pass through.
func ToWorkspaceExt(p string, rules []ExtRule) string {
	var match *ExtRule
	for i := range rules {
		r := &rules[i]
		if strings.HasSuffix(p, r.Workspace) {
			return p
		}
		if strings.HasSuffix(p, r.Package) && (match == nil || len(r.Package) > len(match.Package)) {
			match = r
		}
	}
	if match == nil {
		return p
	}
	return strings.TrimSuffix(p, match.Package) + match.Workspace
}

// FromWorkspaceExt is the inverse of [ToWorkspaceExt].
func FromWorkspaceExt(p string, rules []ExtRule) string {
	var match *ExtRule
	for i := range rules {
		r := &rules[i]
		if strings.HasSuffix(p, r.Workspace) && (match == nil || len(r.Workspace) > len(match.Workspace)) {
			match = r
		}
	}
	if match == nil {
		return p
	}
	return strings.TrimSuffix(p, match.Workspace) + match.Package
}

func extAllowed(p string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	for _, ext := range exts {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}
