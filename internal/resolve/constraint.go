package resolve

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"github.com/agentx-labs/agentpkg/internal/logging"
	"github.com/agentx-labs/agentpkg/internal/manifest"
	"github.com/agentx-labs/agentpkg/internal/registry"
	"github.com/agentx-labs/agentpkg/internal/remote"
)

// Mode selects where versions come from.
type Mode string

const (
	ModeLocalOnly     Mode = "local-only"
	ModeDefault       Mode = "default"
	ModeRemotePrimary Mode = "remote-primary"
)

// ParseMode validates s. Empty means [ModeDefault].
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeDefault, nil
	case ModeLocalOnly, ModeDefault, ModeRemotePrimary:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid resolution mode %q (want local-only, default or remote-primary)", s)
}

// Source records where a selected version came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Inventory is the local registry surface the resolver needs.
type Inventory interface {
	ListVersions(ctx context.Context, name string) ([]string, error)
	LoadManifest(ctx context.Context, name, version string) (*manifest.Manifest, error)
}

// Remote is the remote metadata surface the resolver needs.
type Remote interface {
	FetchMetadata(ctx context.Context, name, version string) (*remote.Info, error)
}

// Request asks for one version of Name satisfying every range in Ranges.
type Request struct {
	Name   string
	Ranges []string
	Mode   Mode
}

// Selection is the outcome of [ConstraintResolver.Select].
type Selection struct {
	Name      string
	Version   string
	Source    Source
	Available []string // every candidate version considered, highest first
}

var errNoRemote = errors.New("no remote registry configured")

// ConstraintResolver selects versions. Remote may be nil.
type ConstraintResolver struct {
	Local  Inventory
	Remote Remote
	log    zerolog.Logger
}

// NewConstraintResolver returns a resolver over local and (optionally) remote.
func NewConstraintResolver(local Inventory, rem Remote) *ConstraintResolver {
	return &ConstraintResolver{Local: local, Remote: rem, log: logging.Get("resolve")}
}

// Select picks the highest version of req.Name satisfying all ranges.
//
// In local-only mode the remote is never consulted. In default mode it is
// consulted only when no local version satisfies. In remote-primary mode it
// is always consulted and its failures are returned as is. Errors are
// *NotFoundError, *VersionConflictError, or *remote.Failure.
func (r *ConstraintResolver) Select(ctx context.Context, req Request) (*Selection, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeDefault
	}
	set, err := parseRanges(req.Ranges)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", req.Name, err)
	}

	local, err := r.Local.ListVersions(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	isLocal := make(map[string]bool, len(local))
	for _, v := range local {
		isLocal[v] = true
	}

	if mode != ModeRemotePrimary {
		if v, ok := set.pick(local); ok {
			return &Selection{Name: req.Name, Version: v, Source: SourceLocal, Available: local}, nil
		}
		if mode == ModeLocalOnly || r.Remote == nil {
			return nil, r.miss(req, set, local)
		}
	}

	if r.Remote == nil {
		return nil, &remote.Failure{Name: req.Name, Reason: remote.ReasonNotFound, Err: errNoRemote}
	}
	info, ferr := r.Remote.FetchMetadata(ctx, req.Name, "")
	if ferr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if mode == ModeRemotePrimary {
			return nil, ferr
		}
		r.log.Debug().Err(ferr).Str("package", req.Name).Msg("remote lookup failed")
		if len(local) > 0 || remote.ReasonOf(ferr) == remote.ReasonNotFound {
			return nil, r.miss(req, set, local)
		}
		return nil, ferr
	}

	all := mergeVersions(local, info.Versions)
	v, ok := set.pick(all)
	if !ok {
		return nil, r.miss(req, set, all)
	}
	src := SourceRemote
	if isLocal[v] {
		src = SourceLocal
	}
	return &Selection{Name: req.Name, Version: v, Source: src, Available: all}, nil
}

func (r *ConstraintResolver) miss(req Request, set rangeSet, available []string) error {
	if len(available) == 0 {
		return &NotFoundError{Name: req.Name}
	}
	return &VersionConflictError{Name: req.Name, Ranges: set.display(), Available: available}
}

// LoadManifest fetches the manifest for a selection from wherever it was found.
func (r *ConstraintResolver) LoadManifest(ctx context.Context, sel *Selection) (*manifest.Manifest, error) {
	if sel.Source == SourceLocal {
		return r.Local.LoadManifest(ctx, sel.Name, sel.Version)
	}
	if r.Remote == nil {
		return nil, fmt.Errorf("%s@%s: %w", sel.Name, sel.Version, registry.ErrNotFound)
	}
	info, err := r.Remote.FetchMetadata(ctx, sel.Name, sel.Version)
	if err != nil {
		return nil, err
	}
	return info.Manifest, nil
}

func mergeVersions(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	registry.SortVersions(out)
	return out
}

var prereleaseToken = regexp.MustCompile(`\d+\.\d+\.\d+-[0-9A-Za-z]`)

// rangeSet is the parsed intersection of ranges.
type rangeSet struct {
	raw         []string
	constraints []*semver.Constraints
	prerelease  bool // a range names a prerelease explicitly
}

// parseRanges splits every range on "&" and parses the parts. Empty parts
// and "*" match any version.
func parseRanges(ranges []string) (rangeSet, error) {
	var set rangeSet
	for _, r := range ranges {
		for _, part := range strings.Split(r, "&") {
			part = strings.TrimSpace(part)
			if part == "" || part == "*" {
				continue
			}
			c, err := semver.NewConstraint(part)
			if err != nil {
				return rangeSet{}, fmt.Errorf("invalid range %q: %w", part, err)
			}
			set.raw = append(set.raw, part)
			set.constraints = append(set.constraints, c)
			if prereleaseToken.MatchString(part) {
				set.prerelease = true
			}
		}
	}
	return set, nil
}

func (s rangeSet) display() []string {
	if len(s.raw) == 0 {
		return []string{"*"}
	}
	return s.raw
}

func (s rangeSet) wildcard() bool { return len(s.constraints) == 0 }

// check reports whether v satisfies every constraint. Prerelease versions
// are matched on their core version when allowPre is set.
func (s rangeSet) check(v *semver.Version, allowPre bool) bool {
	for _, c := range s.constraints {
		if c.Check(v) {
			continue
		}
		if !allowPre || v.Prerelease() == "" {
			return false
		}
		core, err := semver.NewVersion(fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch()))
		if err != nil || !c.Check(core) {
			return false
		}
	}
	return true
}

// pick returns the best version in candidates (sorted highest first).
// Stable versions win unless a range asks for a prerelease or no stable
// version satisfies. The unversioned sentinel only satisfies wildcards and
// only when no semver version does.
func (s rangeSet) pick(candidates []string) (string, bool) {
	var firstPre string
	hasUnversioned := false
	for _, c := range candidates {
		if c == manifest.Unversioned {
			hasUnversioned = true
			continue
		}
		v, err := semver.NewVersion(c)
		if err != nil {
			continue
		}
		if v.Prerelease() == "" {
			if s.check(v, false) {
				if s.prerelease && firstPre != "" {
					return firstPre, true
				}
				return c, true
			}
			continue
		}
		if firstPre == "" && s.check(v, true) {
			firstPre = c
		}
	}
	if firstPre != "" {
		return firstPre, true
	}
	if hasUnversioned && s.wildcard() {
		return manifest.Unversioned, true
	}
	return "", false
}

// Satisfies reports whether version satisfies every range.
func Satisfies(version string, ranges ...string) bool {
	set, err := parseRanges(ranges)
	if err != nil {
		return false
	}
	if version == manifest.Unversioned {
		return set.wildcard()
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return set.check(v, set.prerelease || v.Prerelease() != "")
}

// compareVersions orders two versions; unparseable ones sort lowest.
func compareVersions(a, b string) int {
	va, ea := semver.NewVersion(a)
	vb, eb := semver.NewVersion(b)
	switch {
	case ea != nil && eb != nil:
		return strings.Compare(a, b)
	case ea != nil:
		return -1
	case eb != nil:
		return 1
	}
	return va.Compare(vb)
}
