package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sahilm/fuzzy"

	"github.com/agentx-labs/agentpkg/internal/logging"
	"github.com/agentx-labs/agentpkg/internal/manifest"
	"github.com/agentx-labs/agentpkg/internal/remote"
)

// Resolution records how a name reached more than once was reconciled.
type Resolution string

const (
	ResolutionNone        Resolution = ""
	ResolutionKept        Resolution = "kept"
	ResolutionOverwritten Resolution = "overwritten"
	ResolutionSkipped     Resolution = "skipped"
)

// Node is one resolved package.
type Node struct {
	Name          string
	Version       string
	Manifest      *manifest.Manifest
	IsRoot        bool
	RequiredRange string // merged ranges the version was selected against
	Resolution    Resolution
	Source        Source
	Parent        string // normalized name of the first requester; empty for roots
	Depth         int
}

// Root is a top-level request.
type Root struct {
	Name string
	// Range is the range requested for this root, e.g. from name@range on
	// the command line. Empty means any version.
	Range string
	// IncludeDev recurses into the root's dev-packages.
	IncludeDev bool
}

// OverwriteConfirmer decides whether a higher candidate may replace an
// already-resolved version.
type OverwriteConfirmer interface {
	ConfirmOverwrite(ctx context.Context, name, current, candidate string) (bool, error)
}

// Options tune a resolution run.
type Options struct {
	Mode Mode
	// RootRanges are workspace-manifest ranges keyed by normalized name.
	// They replace every other range asserted for the same name.
	RootRanges map[string]string
	// Global are ranges gathered up front from other manifests, keyed by
	// normalized name. See [GatherConstraints].
	Global map[string][]string
	// Installed maps normalized names to the version currently installed.
	Installed map[string]string
	Force     bool
	Confirm   OverwriteConfirmer
}

// Result is the outcome of [Graph.Resolve].
type Result struct {
	Packages []*Node // roots first, then depth-first discovery order
	Missing  []string
	Failures map[string]error // reason per missing name
	Cycles   [][]string
	Warnings []string
}

// Get returns the node for name.
func (r *Result) Get(name string) (*Node, bool) {
	key := manifest.NormalizeName(name)
	for _, n := range r.Packages {
		if manifest.NormalizeName(n.Name) == key {
			return n, true
		}
	}
	return nil, false
}

// Namer lists every known package name; used for suggestions.
type Namer interface {
	Names(ctx context.Context) ([]string, error)
}

// Prefetcher warms version lookups for many names at once.
type Prefetcher interface {
	Prefetch(ctx context.Context, names []string) error
}

// Graph resolves dependency graphs.
type Graph struct {
	Resolver *ConstraintResolver
	log      zerolog.Logger
}

// NewGraph returns a graph resolver using r for per-name selection.
func NewGraph(r *ConstraintResolver) *Graph {
	return &Graph{Resolver: r, log: logging.Get("resolve")}
}

// Context is the mutable state of one resolution run.
type Context struct {
	visiting map[string]bool
	path     []string // active stack of display names
	resolved map[string]*Node
	ranges   map[string][]string // accumulated from earlier edges
	result   *Result
}

func newContext() *Context {
	return &Context{
		visiting: make(map[string]bool),
		resolved: make(map[string]*Node),
		ranges:   make(map[string][]string),
		result:   &Result{Failures: make(map[string]error)},
	}
}

type frame struct {
	name       string
	rng        string
	parent     string
	depth      int
	root       bool
	includeDev bool
	exit       bool
}

// GatherConstraints collects every range each manifest declares, keyed by
// normalized name.
func GatherConstraints(manifests ...*manifest.Manifest) map[string][]string {
	out := make(map[string][]string)
	for _, m := range manifests {
		if m == nil {
			continue
		}
		for _, d := range m.Dependencies(true) {
			if strings.TrimSpace(d.Version) == "" {
				continue
			}
			key := manifest.NormalizeName(d.Name)
			out[key] = appendUnique(out[key], d.Version)
		}
	}
	return out
}

// Resolve walks the graph below roots. Missing packages and remote
// failures degraded by the mode are reported in the result; version
// conflicts, remote failures in remote-primary mode, confirmation errors and
// cancellation are returned.
func (g *Graph) Resolve(ctx context.Context, roots []Root, opts Options) (*Result, error) {
	rc := newContext()
	g.prefetch(ctx, rootNames(roots))

	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{name: roots[i].Name, rng: roots[i].Range, root: true, includeDev: roots[i].IncludeDev})
	}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		key := manifest.NormalizeName(f.name)

		if f.exit {
			delete(rc.visiting, key)
			rc.path = rc.path[:len(rc.path)-1]
			continue
		}

		if rc.visiting[key] {
			rc.cycle(f.name)
			continue
		}

		ranges := rc.constraints(key, f, opts)
		if f.rng != "" {
			rc.ranges[key] = appendUnique(rc.ranges[key], f.rng)
		}

		sel, err := g.Resolver.Select(ctx, Request{Name: f.name, Ranges: ranges, Mode: opts.Mode})
		var vc *VersionConflictError
		_, pinned := opts.RootRanges[key]
		if prev, ok := rc.resolved[key]; ok && !pinned && f.rng != "" && errors.As(err, &vc) {
			// A later edge disagrees with earlier ones. Select for this edge
			// alone and let reconcile pick between the two versions.
			rc.result.Warnings = append(rc.result.Warnings, fmt.Sprintf(
				"%s requested as %s but %s is already resolved", prev.Name, f.rng, prev.Version))
			ranges = []string{f.rng}
			sel, err = g.Resolver.Select(ctx, Request{Name: f.name, Ranges: ranges, Mode: opts.Mode})
		}
		if err != nil {
			if herr := g.recover(ctx, rc, f.name, opts.Mode, err); herr != nil {
				return nil, herr
			}
			continue
		}

		if prev, ok := rc.resolved[key]; ok {
			replace, err := g.reconcile(ctx, prev, sel, opts)
			if err != nil {
				return nil, err
			}
			if !replace {
				continue
			}
		}

		m, err := g.Resolver.LoadManifest(ctx, sel)
		if err != nil {
			if herr := g.recover(ctx, rc, f.name, opts.Mode, err); herr != nil {
				return nil, herr
			}
			continue
		}

		node, existed := rc.resolved[key]
		if !existed {
			node = &Node{
				Name:   f.name,
				IsRoot: f.root,
				Parent: f.parent,
				Depth:  f.depth,
			}
			if m.Name != "" {
				node.Name = m.Name
			}
			rc.resolved[key] = node
			rc.result.Packages = append(rc.result.Packages, node)
		}
		node.Version = sel.Version
		node.Manifest = m
		node.Source = sel.Source
		node.RequiredRange = strings.Join(ranges, " & ")
		if !existed && opts.Installed[key] == sel.Version {
			node.Resolution = ResolutionKept
		}

		g.log.Debug().Str("package", node.Name).Str("version", node.Version).
			Str("source", string(node.Source)).Str("range", node.RequiredRange).Msg("resolved")

		deps := m.Dependencies(f.includeDev)
		rc.visiting[key] = true
		rc.path = append(rc.path, node.Name)
		stack = append(stack, frame{name: f.name, exit: true})
		for i := len(deps) - 1; i >= 0; i-- {
			stack = append(stack, frame{
				name:   deps[i].Name,
				rng:    deps[i].Version,
				parent: key,
				depth:  f.depth + 1,
			})
		}
		g.prefetch(ctx, depNames(deps))
	}

	return rc.result, nil
}

// constraints merges the ranges asserted for key, in order: the edge range,
// global ranges, ranges from earlier edges. A workspace-declared range
// replaces all of them, except for a root that names its own range.
func (rc *Context) constraints(key string, f frame, opts Options) []string {
	if rr, ok := opts.RootRanges[key]; ok && !(f.root && f.rng != "") {
		return []string{rr}
	}
	var out []string
	if f.rng != "" {
		out = append(out, f.rng)
	}
	for _, r := range opts.Global[key] {
		out = appendUnique(out, r)
	}
	for _, r := range rc.ranges[key] {
		out = appendUnique(out, r)
	}
	return out
}

func (rc *Context) cycle(name string) {
	key := manifest.NormalizeName(name)
	start := 0
	for i, p := range rc.path {
		if manifest.NormalizeName(p) == key {
			start = i
			break
		}
	}
	cycle := append(append([]string{}, rc.path[start:]...), name)
	rc.result.Cycles = append(rc.result.Cycles, cycle)
	rc.result.Warnings = append(rc.result.Warnings, "dependency cycle detected: "+strings.Join(cycle, " → "))
}

// reconcile decides whether sel replaces the already-resolved prev.
func (g *Graph) reconcile(ctx context.Context, prev *Node, sel *Selection, opts Options) (bool, error) {
	if prev.Version == sel.Version {
		return false, nil
	}
	if compareVersions(sel.Version, prev.Version) <= 0 {
		prev.Resolution = ResolutionSkipped
		g.log.Debug().Str("package", prev.Name).Str("kept", prev.Version).Str("candidate", sel.Version).Msg("lower candidate skipped")
		return false, nil
	}

	ok := opts.Force
	if !ok && opts.Confirm != nil {
		var err error
		ok, err = opts.Confirm.ConfirmOverwrite(ctx, prev.Name, prev.Version, sel.Version)
		if err != nil {
			return false, err
		}
	}
	if !ok {
		prev.Resolution = ResolutionKept
		return false, nil
	}
	prev.Resolution = ResolutionOverwritten
	return true, nil
}

// recover turns edge-local failures into missing entries. It returns err
// when the failure must abort the run.
func (g *Graph) recover(ctx context.Context, rc *Context, name string, mode Mode, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var (
		vc *VersionConflictError
		nf *NotFoundError
		rf *remote.Failure
	)
	switch {
	case errors.As(err, &vc):
		return err
	case errors.As(err, &nf):
		nf.Suggestions = g.suggest(ctx, name)
		rc.missing(name, nf)
	case errors.As(err, &rf):
		if mode == ModeRemotePrimary {
			return err
		}
		g.log.Warn().Str("package", name).Str("reason", string(rf.Reason)).Msg("remote lookup failed; treating as missing")
		rc.missing(name, rf)
	default:
		return fmt.Errorf("resolving %s: %w", name, err)
	}
	return nil
}

func (rc *Context) missing(name string, err error) {
	key := manifest.NormalizeName(name)
	if _, dup := rc.result.Failures[key]; dup {
		return
	}
	rc.result.Missing = append(rc.result.Missing, name)
	rc.result.Failures[key] = err
	rc.result.Warnings = append(rc.result.Warnings, err.Error())
}

func (g *Graph) suggest(ctx context.Context, name string) []string {
	namer, ok := g.Resolver.Local.(Namer)
	if !ok {
		return nil
	}
	names, err := namer.Names(ctx)
	if err != nil {
		return nil
	}
	query := manifest.NormalizeName(name)
	var out []string
	add := func(s string) {
		if s != query && len(out) < 3 {
			out = appendUnique(out, s)
		}
	}
	for _, m := range fuzzy.Find(query, names) {
		add(m.Str)
	}
	// Also suggest names the query extends, e.g. "lib" for "libb".
	for _, n := range names {
		if len(fuzzy.Find(n, []string{query})) > 0 {
			add(n)
		}
	}
	return out
}

func (g *Graph) prefetch(ctx context.Context, names []string) {
	p, ok := g.Resolver.Local.(Prefetcher)
	if !ok || len(names) < 2 {
		return
	}
	if err := p.Prefetch(ctx, names); err != nil {
		g.log.Debug().Err(err).Msg("prefetch failed")
	}
}

func rootNames(roots []Root) []string {
	out := make([]string, len(roots))
	for i, r := range roots {
		out[i] = r.Name
	}
	return out
}

func depNames(deps []manifest.Dependency) []string {
	out := make([]string, len(deps))
	for i, d := range deps {
		out[i] = d.Name
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
