package install

import (
	"errors"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/agentx-labs/agentpkg/internal/branding"
	"github.com/agentx-labs/agentpkg/internal/index"
	"github.com/agentx-labs/agentpkg/internal/platform"
	"github.com/agentx-labs/agentpkg/internal/registry"
)

// target is one file to be written for one platform.
type target struct {
	Path     string // workspace-relative
	Source   string // registry path
	Platform string // empty for platform-independent files
	Group    *group
	Suffixed bool
	Content  []byte // universal content before per-platform rendering
}

// group is a set of targets sharing an index key. A group tracked at
// directory level for a platform is recorded as one directory key.
type group struct {
	Key      string            // registry-side directory, no trailing slash
	Dirs     map[string]string // platform -> workspace directory
	FileOnly bool              // never tracked at directory level
	dirLevel map[string]bool   // platform -> tracked at directory level
}

func (g *group) isDir(platformID string) bool {
	return g != nil && g.dirLevel[platformID]
}

// plan is the output of the planning phase.
type plan struct {
	targets  []*target
	groups   map[string]*group
	warnings []string
}

// buildPlan expands pkg's files into targets for platforms.
func (p *Planner) buildPlan(pkg *registry.Package, platforms []string, prior *index.Record) *plan {
	pl := &plan{groups: make(map[string]*group)}
	selected := make(map[string]bool, len(platforms))
	for _, id := range platforms {
		selected[id] = true
	}

	type universalFile struct {
		file registry.File
		up   platform.UniversalPath
	}
	var universal []universalFile
	suffixed := make(map[string]bool) // base + "\x00" + platform

	for _, f := range pkg.Files {
		if skippable(f.Path) {
			continue
		}
		if up, ok := p.catalog.ParseUniversalPath(f.Path); ok {
			universal = append(universal, universalFile{file: f, up: up})
			if up.Platform != "" {
				suffixed[up.Base()+"\x00"+up.Platform] = true
			}
			continue
		}

		first, _, _ := strings.Cut(f.Path, "/")
		if def, ok := p.catalog.ByRootDir(first); ok {
			if !selected[def.ID] {
				continue
			}
			pl.add(p.verbatimGroup(f.Path, def.ID), &target{Path: f.Path, Source: f.Path, Platform: def.ID, Suffixed: true, Content: f.Content})
			continue
		}
		pl.add(p.verbatimGroup(f.Path, ""), &target{Path: f.Path, Source: f.Path, Content: f.Content})
	}

	for _, uf := range universal {
		up := uf.up
		var ids []string
		if up.Platform != "" {
			if !selected[up.Platform] {
				continue
			}
			ids = []string{up.Platform}
		} else {
			for _, id := range platforms {
				if !suffixed[up.Base()+"\x00"+id] {
					ids = append(ids, id)
				}
			}
		}

		for _, id := range ids {
			t, err := p.catalog.ResolvePlatformPath(up.Subdir, up.RelPath, id)
			if err != nil {
				if up.Platform != "" {
					pl.warnings = append(pl.warnings, "skipping "+uf.file.Path+": "+err.Error())
				}
				p.log.Debug().Str("file", uf.file.Path).Str("platform", id).Err(err).Msg("no target")
				continue
			}
			g := p.universalGroup(pl, up, id)
			pl.add(g, &target{
				Path:     t.File,
				Source:   uf.file.Path,
				Platform: id,
				Suffixed: up.Platform != "",
				Content:  uf.file.Content,
			})
		}
	}

	pl.dedupe()
	pl.chooseGranularity(p, prior)
	return pl
}

// skippable reports registry files that are never installed: the manifest
// and anything at the package root.
func skippable(p string) bool {
	if p == branding.ManifestFile() {
		return true
	}
	return !strings.Contains(p, "/")
}

func (pl *plan) add(g *group, t *target) {
	if existing, ok := pl.groups[g.Key]; ok {
		for id, dir := range g.Dirs {
			if _, set := existing.Dirs[id]; !set {
				existing.Dirs[id] = dir
			}
		}
		existing.FileOnly = existing.FileOnly || g.FileOnly
		g = existing
	} else {
		pl.groups[g.Key] = g
	}
	t.Group = g
	pl.targets = append(pl.targets, t)
}

// universalGroup derives the group for a universal file. Files directly
// under a subdir are tracked per file; nested files group by their first
// directory, e.g. skills/foo/.
func (p *Planner) universalGroup(pl *plan, up platform.UniversalPath, id string) *group {
	first, nested := up.FirstSegment()
	if !nested {
		return &group{Key: up.Subdir, FileOnly: true, Dirs: map[string]string{}}
	}
	sub, _ := p.catalog.SubdirPath(up.Subdir, id)
	return &group{
		Key:  up.Subdir + "/" + first,
		Dirs: map[string]string{id: path.Join(sub, first)},
	}
}

// verbatimGroup groups a non-universal file by its containing directory.
// Platform roots and platform subdirs are shared and stay file tracked.
func (p *Planner) verbatimGroup(file, id string) *group {
	dir := path.Dir(file)
	return &group{
		Key:      dir,
		Dirs:     map[string]string{id: dir},
		FileOnly: p.catalog.IsProtectedDir(dir) || dir == branding.HomeDir(),
	}
}

// dedupe drops targets that land on the same path. A platform-suffixed
// source wins over a universal one; otherwise the first source in path
// order wins.
func (pl *plan) dedupe() {
	sort.SliceStable(pl.targets, func(i, j int) bool {
		if pl.targets[i].Path != pl.targets[j].Path {
			return pl.targets[i].Path < pl.targets[j].Path
		}
		if pl.targets[i].Suffixed != pl.targets[j].Suffixed {
			return pl.targets[i].Suffixed
		}
		return pl.targets[i].Source < pl.targets[j].Source
	})
	out := pl.targets[:0]
	for i, t := range pl.targets {
		if i > 0 && t.Path == pl.targets[i-1].Path {
			prev := pl.targets[i-1]
			if !prev.Suffixed || t.Suffixed {
				pl.warnings = append(pl.warnings, t.Source+" and "+prev.Source+" both map to "+t.Path+"; using "+prev.Source)
			}
			continue
		}
		out = append(out, t)
	}
	pl.targets = out
}

// chooseGranularity decides, per group and platform, whether ownership is
// recorded for the whole directory. A directory already tracked in the
// prior record stays tracked; otherwise an empty or missing directory is
// tracked and a non-empty one is not.
func (pl *plan) chooseGranularity(p *Planner, prior *index.Record) {
	priorDirs := make(map[string]bool)
	if prior != nil {
		for _, d := range prior.DirClaims() {
			priorDirs[d] = true
		}
	}
	for _, g := range pl.groups {
		g.dirLevel = make(map[string]bool, len(g.Dirs))
		if g.FileOnly {
			continue
		}
		for id, dir := range g.Dirs {
			switch {
			case priorDirs[dir]:
				g.dirLevel[id] = true
			case dirHasEntries(p.ws.Abs(dir)):
				g.dirLevel[id] = false
			default:
				g.dirLevel[id] = true
			}
			p.log.Debug().Str("group", g.Key).Str("platform", id).Str("dir", dir).
				Bool("directory", g.dirLevel[id]).Msg("granularity")
		}
	}
}

func dirHasEntries(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return !errors.Is(err, os.ErrNotExist) && fileExists(dir)
	}
	return len(entries) > 0
}

func fileExists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

// indexKey returns the key and value a target contributes to the record.
func indexKey(t *target) (index.Key, string) {
	if t.Group.isDir(t.Platform) {
		return index.DirKey(t.Group.Key), t.Group.Dirs[t.Platform] + "/"
	}
	return index.FileKey(t.Source), t.Path
}
