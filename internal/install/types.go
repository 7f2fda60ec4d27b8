package install

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentx-labs/agentpkg/internal/index"
	"github.com/agentx-labs/agentpkg/internal/registry"
)

// ErrCancelled is returned when the user aborts a conflict prompt.
var ErrCancelled = errors.New("installation cancelled")

// ErrNotInstalled is returned by Uninstall for a package without a record.
var ErrNotInstalled = errors.New("package is not installed")

// Resolution is the answer to an ownership conflict.
type Resolution string

const (
	KeepBoth  Resolution = "keep-both"
	Skip      Resolution = "skip"
	Overwrite Resolution = "overwrite"
)

// ParseResolution validates s. Empty is allowed and means no default.
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(s); r {
	case "", KeepBoth, Skip, Overwrite:
		return r, nil
	}
	return "", fmt.Errorf("invalid conflict strategy %q (want keep-both, skip or overwrite)", s)
}

// ConflictKind distinguishes the two conflict sources.
type ConflictKind string

const (
	// Owned means another package's index claims the path.
	Owned ConflictKind = "owned"
	// Unowned means the path exists on disk but no index claims it.
	Unowned ConflictKind = "unowned"
)

// Conflict describes one planned write that collides with existing state.
type Conflict struct {
	Package  string // package being installed
	Path     string // workspace-relative target
	Source   string // registry path
	Platform string
	Kind     ConflictKind
	Owner    string // owning package for Owned conflicts
}

func (c Conflict) String() string {
	if c.Kind == Owned {
		return fmt.Sprintf("%s is owned by %s", c.Path, c.Owner)
	}
	return fmt.Sprintf("%s already exists and is not managed by any package", c.Path)
}

// Decider chooses how to resolve a conflict. Returning ErrCancelled aborts
// the install.
type Decider interface {
	Choose(ctx context.Context, c Conflict) (Resolution, error)
}

// DeciderFunc adapts a function to [Decider].
type DeciderFunc func(ctx context.Context, c Conflict) (Resolution, error)

// Choose calls f.
func (f DeciderFunc) Choose(ctx context.Context, c Conflict) (Resolution, error) { return f(ctx, c) }

// Request describes one package install.
type Request struct {
	Package   *registry.Package
	Platforms []string

	DryRun          bool
	Force           bool // resolve every conflict as keep-both
	NonInteractive  bool
	DefaultStrategy Resolution
	// Decisions pre-answers conflicts, keyed by workspace-relative path.
	Decisions map[string]Resolution
	Decider   Decider
}

// Decision records how a conflict was resolved.
type Decision struct {
	Conflict
	Resolution Resolution
	RenamedTo  string // keep-both: where the existing file went
}

// FileError is a per-file I/O failure. It never aborts a plan.
type FileError struct {
	Path string
	Op   string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err) }

// Result summarizes an install. In dry-run mode it describes what would
// happen.
type Result struct {
	Package   string
	Version   string
	DryRun    bool
	Created   []string
	Updated   []string
	Deleted   []string
	Unchanged []string
	Decisions []Decision
	Failed    []FileError
	Warnings  []string
	Record    *index.Record
}

// Changed reports whether the install touched the filesystem.
func (r *Result) Changed() bool {
	if len(r.Created)+len(r.Updated)+len(r.Deleted) > 0 {
		return true
	}
	for _, d := range r.Decisions {
		if d.RenamedTo != "" {
			return true
		}
	}
	return false
}
