package install

import (
	"context"
	"fmt"
	"sort"
)

// UninstallRequest describes the removal of one installed package.
type UninstallRequest struct {
	Package string
	DryRun  bool
}

// UninstallResult lists what was (or would be) removed.
type UninstallResult struct {
	Package string
	Version string
	DryRun  bool
	Deleted []string
	Kept    []string // files now claimed by another package
	Failed  []FileError
}

// Uninstall deletes every file the package's record owns, except files
// another package claims, and then deletes the record.
func (p *Planner) Uninstall(ctx context.Context, req UninstallRequest) (*UninstallResult, error) {
	rec, err := p.store.Read(ctx, req.Package)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, req.Package)
	}
	own, err := p.store.Ownership(ctx, rec.Package)
	if err != nil {
		return nil, err
	}

	res := &UninstallResult{Package: rec.Package, Version: rec.Workspace.Version, DryRun: req.DryRun}
	var changes []change
	for _, f := range rec.Expand(p.ws.Root, own) {
		if o, ok := own.Owner(f); ok && o.Package != rec.Package {
			res.Kept = append(res.Kept, f)
			continue
		}
		if !fileExists(p.ws.Abs(f)) {
			continue
		}
		res.Deleted = append(res.Deleted, f)
		changes = append(changes, change{op: "delete", path: f})
	}
	sort.Strings(res.Deleted)
	if req.DryRun {
		return res, nil
	}

	res.Failed = p.apply(ctx, changes)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	p.prune(res.Deleted)
	if len(res.Failed) > 0 {
		// Keep the record so a retry can finish the job.
		return res, fmt.Errorf("uninstalling %s: %d file(s) could not be removed", rec.Package, len(res.Failed))
	}
	if err := p.store.Delete(ctx, rec.Package); err != nil {
		return nil, err
	}
	p.log.Info().Str("package", rec.Package).Int("deleted", len(res.Deleted)).Msg("uninstalled")
	return res, nil
}
