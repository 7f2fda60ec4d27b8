package install

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agentx-labs/agentpkg/internal/branding"
	"github.com/agentx-labs/agentpkg/internal/index"
	"github.com/agentx-labs/agentpkg/internal/logging"
	"github.com/agentx-labs/agentpkg/internal/platform"
	"github.com/agentx-labs/agentpkg/internal/workspace"
)

// writers bounds concurrent file writes within one package.
const writers = 8

// Planner installs packages into one workspace.
type Planner struct {
	catalog *platform.Catalog
	ws      *workspace.Workspace
	store   *index.Store
	log     zerolog.Logger
}

// New returns a planner for ws using catalog for path translation.
func New(catalog *platform.Catalog, ws *workspace.Workspace) *Planner {
	return &Planner{
		catalog: catalog,
		ws:      ws,
		store:   ws.Index(),
		log:     logging.Get("install"),
	}
}

// change is one filesystem operation of the apply phase.
type change struct {
	op      string // create, update, delete
	path    string
	content []byte
}

// Plan installs req.Package. It returns ErrCancelled if the user aborts a
// conflict prompt or ctx is cancelled, in which case the index record is
// left untouched.
func (p *Planner) Plan(ctx context.Context, req Request) (*Result, error) {
	pkg := req.Package
	if pkg == nil {
		return nil, errors.New("install: no package")
	}
	if err := p.catalog.Validate(req.Platforms); err != nil {
		return nil, err
	}
	res := &Result{Package: pkg.Name, Version: pkg.Version, DryRun: req.DryRun}
	log := p.log.With().Str("package", pkg.Name).Str("version", pkg.Version).Logger()

	prior, err := p.store.Read(ctx, pkg.Name)
	if err != nil {
		return nil, err
	}
	own, err := p.store.Ownership(ctx, pkg.Name)
	if err != nil {
		return nil, err
	}

	// Phase A: planning.
	pl := p.buildPlan(pkg, req.Platforms, prior)
	res.Warnings = append(res.Warnings, pl.warnings...)
	if len(pl.targets) == 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s@%s has no files for platforms %s", pkg.Name, pkg.Version, strings.Join(req.Platforms, ", ")))
	}

	priorPaths := make(map[string]bool)
	if prior != nil {
		for _, f := range prior.Expand(p.ws.Root, own) {
			priorPaths[f] = true
		}
	}

	copies := localCopies(prior, pl.targets, priorPaths)
	for pth := range copies {
		delete(priorPaths, pth)
	}

	// Phase B: conflicts.
	decisions, err := p.resolveConflicts(ctx, req, pl, own, priorPaths)
	if err != nil {
		return nil, err
	}
	res.Decisions = decisions
	for _, d := range decisions {
		if d.Resolution == Skip {
			res.Warnings = append(res.Warnings, "skipped "+d.Conflict.String())
			delete(priorPaths, d.Path)
		}
	}

	// Phase C: diff and apply.
	changes, err := p.diff(ctx, pl, priorPaths)
	if err != nil {
		return nil, err
	}
	for _, c := range changes {
		switch c.op {
		case "create":
			res.Created = append(res.Created, c.path)
		case "update":
			res.Updated = append(res.Updated, c.path)
		case "delete":
			res.Deleted = append(res.Deleted, c.path)
		case "noop":
			res.Unchanged = append(res.Unchanged, c.path)
		}
	}

	rec := p.record(pkg.Name, pkg.Version, pl)
	for pth, k := range copies {
		rec.Add(k, pth)
	}
	res.Record = rec
	if req.DryRun {
		return res, nil
	}

	if err := p.transferOwnership(ctx, decisions, own); err != nil {
		return nil, err
	}
	res.Failed = p.apply(ctx, changes)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
	for _, fe := range res.Failed {
		log.Warn().Str("path", fe.Path).Str("op", fe.Op).Err(fe.Err).Msg("file operation failed")
		if fe.Op == "create" {
			rec.RemovePath(fe.Path)
		}
	}

	if err := p.store.Write(ctx, rec); err != nil {
		return nil, err
	}
	p.prune(res.Deleted)

	log.Info().Int("created", len(res.Created)).Int("updated", len(res.Updated)).
		Int("deleted", len(res.Deleted)).Int("failed", len(res.Failed)).Msg("installed")
	return res, nil
}

// diff compares the planned content with disk and the prior snapshot.
func (p *Planner) diff(ctx context.Context, pl *plan, priorPaths map[string]bool) ([]change, error) {
	changes := make([]change, len(pl.targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(writers)
	for i, t := range pl.targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := render(t)
			if err != nil {
				return err
			}
			c := change{op: "create", path: t.Path, content: content}
			existing, err := os.ReadFile(p.ws.Abs(t.Path))
			switch {
			case err == nil && bytes.Equal(existing, content):
				c.op = "noop"
			case err == nil:
				c.op = "update"
			}
			changes[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	planned := make(map[string]bool, len(pl.targets))
	for _, t := range pl.targets {
		planned[t.Path] = true
	}
	var stale []string
	for pth := range priorPaths {
		if !planned[pth] {
			stale = append(stale, pth)
		}
	}
	sort.Strings(stale)
	for _, pth := range stale {
		changes = append(changes, change{op: "delete", path: pth})
	}
	return changes, nil
}

// record rebuilds the index record from the group and platform decisions.
func (p *Planner) record(name, version string, pl *plan) *index.Record {
	rec := index.NewRecord(name, p.ws.Stamp(version))
	for _, t := range pl.targets {
		k, v := indexKey(t)
		rec.Add(k, v)
	}
	return rec
}

// transferOwnership renames files for keep-both and releases claims for
// overwrite, updating the previous owners' records. A previous owner holding
// the path through a directory claim is downgraded to file-level claims
// first.
func (p *Planner) transferOwnership(ctx context.Context, decisions []Decision, own *index.Ownership) error {
	touched := make(map[string]*index.Record)
	load := func(name string) (*index.Record, error) {
		if rec, ok := touched[name]; ok {
			return rec, nil
		}
		rec, err := p.store.Read(ctx, name)
		if err != nil {
			return nil, err
		}
		touched[name] = rec
		return rec, nil
	}

	for _, d := range decisions {
		if d.Resolution == Skip {
			continue
		}
		var rec *index.Record
		if d.Kind == Owned {
			var err error
			if rec, err = load(d.Owner); err != nil {
				return err
			}
			if rec != nil && rec.Detach(p.ws.Root, d.Path, own) {
				p.log.Debug().Str("owner", d.Owner).Str("path", d.Path).Msg("directory claim split into files")
			}
		}
		if d.RenamedTo != "" {
			dst := p.ws.Abs(d.RenamedTo)
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return fmt.Errorf("keeping %s: %w", d.Path, err)
			}
			if err := os.Rename(p.ws.Abs(d.Path), dst); err != nil {
				return fmt.Errorf("keeping %s: %w", d.Path, err)
			}
			p.log.Info().Str("path", d.Path).Str("renamed", d.RenamedTo).Msg("kept existing file")
		}
		if rec == nil {
			continue
		}
		if d.RenamedTo != "" {
			rec.ReplacePath(d.Path, d.RenamedTo)
		} else {
			rec.RemovePath(d.Path)
		}
	}

	names := make([]string, 0, len(touched))
	for name := range touched {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if rec := touched[name]; rec != nil {
			if err := p.store.Write(ctx, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// apply performs changes concurrently. Failures are collected, not returned.
func (p *Planner) apply(ctx context.Context, changes []change) []FileError {
	var (
		mu     sync.Mutex
		failed []FileError
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(writers)
	for _, c := range changes {
		if c.op == "noop" {
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := p.applyOne(c); err != nil {
				mu.Lock()
				failed = append(failed, FileError{Path: c.path, Op: c.op, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(failed, func(i, j int) bool { return failed[i].Path < failed[j].Path })
	return failed
}

func (p *Planner) applyOne(c change) error {
	abs := p.ws.Abs(c.path)
	if c.op == "delete" {
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return os.WriteFile(abs, c.content, 0o644)
}

// prune removes directories left empty by deletions, walking up until a
// non-empty directory, a platform root, or the workspace root.
func (p *Planner) prune(deleted []string) {
	for _, f := range deleted {
		for dir := path.Dir(f); dir != "." && dir != "/" && dir != branding.HomeDir() && !p.catalog.IsRootDir(dir); dir = path.Dir(dir) {
			if err := os.Remove(p.ws.Abs(dir)); err != nil {
				break
			}
			p.log.Debug().Str("dir", dir).Msg("pruned empty directory")
		}
	}
}
