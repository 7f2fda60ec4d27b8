package install

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/agentx-labs/agentpkg/internal/index"
)

// resolveConflicts checks every target against other packages' claims and
// unmanaged files, collecting one decision per conflict. Skipped targets are
// removed from the plan. Nothing is mutated here.
func (p *Planner) resolveConflicts(ctx context.Context, req Request, pl *plan, own *index.Ownership, priorPaths map[string]bool) ([]Decision, error) {
	var (
		decisions []Decision
		kept      = pl.targets[:0]
		reserved  = make(map[string]bool)
	)
	for _, t := range pl.targets {
		reserved[t.Path] = true
	}

	for _, t := range pl.targets {
		c, ok := p.detect(req, t, own, priorPaths)
		if !ok {
			kept = append(kept, t)
			continue
		}

		res, err := p.decide(ctx, req, c)
		if err != nil {
			return nil, err
		}
		d := Decision{Conflict: c, Resolution: res}
		// Foreign files share the group's directory, so the group can no
		// longer be claimed wholesale.
		t.Group.dirLevel[t.Platform] = false
		switch res {
		case KeepBoth:
			if fileExists(p.ws.Abs(t.Path)) {
				d.RenamedTo = localName(p.ws.Abs, t.Path, reserved)
				reserved[d.RenamedTo] = true
			}
			kept = append(kept, t)
		case Overwrite:
			kept = append(kept, t)
		}
		p.log.Debug().Str("path", t.Path).Str("kind", string(c.Kind)).Str("owner", c.Owner).
			Str("resolution", string(res)).Msg("conflict resolved")
		decisions = append(decisions, d)
	}
	pl.targets = kept
	return decisions, nil
}

// detect reports whether t conflicts with existing state.
func (p *Planner) detect(req Request, t *target, own *index.Ownership, priorPaths map[string]bool) (Conflict, bool) {
	c := Conflict{
		Package:  req.Package.Name,
		Path:     t.Path,
		Source:   t.Source,
		Platform: t.Platform,
	}
	if o, ok := own.Owner(t.Path); ok {
		c.Kind = Owned
		c.Owner = o.Package
		return c, true
	}
	if !priorPaths[t.Path] && fileExists(p.ws.Abs(t.Path)) {
		c.Kind = Unowned
		return c, true
	}
	return Conflict{}, false
}

// decide applies, in order: an explicit decision for the path, force
// (keep-both), the configured default strategy, skip when non-interactive,
// and finally the decider.
func (p *Planner) decide(ctx context.Context, req Request, c Conflict) (Resolution, error) {
	if r, ok := req.Decisions[c.Path]; ok && r != "" {
		return r, nil
	}
	if req.Force {
		return KeepBoth, nil
	}
	if req.DefaultStrategy != "" {
		return req.DefaultStrategy, nil
	}
	if req.NonInteractive || req.Decider == nil {
		return Skip, nil
	}
	r, err := req.Decider.Choose(ctx, c)
	if err != nil {
		if errors.Is(err, ErrCancelled) || ctx.Err() != nil {
			return "", ErrCancelled
		}
		return "", fmt.Errorf("resolving conflict on %s: %w", c.Path, err)
	}
	switch r {
	case KeepBoth, Skip, Overwrite:
		return r, nil
	}
	return "", fmt.Errorf("resolving conflict on %s: invalid choice %q", c.Path, r)
}

// localName returns the first free sibling name for p: name.local.ext, then
// name.local-2.ext, name.local-3.ext and so on. Names in reserved are
// treated as taken.
func localName(abs func(string) string, p string, reserved map[string]bool) string {
	dir, base := path.Split(p)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 1; ; n++ {
		suffix := ".local"
		if n > 1 {
			suffix += "-" + strconv.Itoa(n)
		}
		cand := dir + stem + suffix + ext
		if !reserved[cand] && !fileExists(abs(cand)) {
			return cand
		}
	}
}

// localCopies finds files in prior that are keep-both copies of a planned
// target, left there when another package took the target over. They stay
// on disk and in the record.
func localCopies(prior *index.Record, targets []*target, priorPaths map[string]bool) map[string]index.Key {
	out := make(map[string]index.Key)
	if prior == nil {
		return out
	}
	planned := make(map[string]bool, len(targets))
	for _, t := range targets {
		planned[t.Path] = true
	}
	for k, list := range prior.Files {
		if k.IsDir() {
			continue
		}
		for _, v := range list {
			if planned[v] || !priorPaths[v] {
				continue
			}
			for _, t := range targets {
				if isLocalCopy(v, t.Path) {
					out[v] = k
					break
				}
			}
		}
	}
	return out
}

// isLocalCopy reports whether p is one of the names [localName] can return
// for of.
func isLocalCopy(p, of string) bool {
	dir, base := path.Split(of)
	ext := path.Ext(base)
	rest, ok := strings.CutPrefix(p, dir+strings.TrimSuffix(base, ext)+".local")
	if !ok {
		return false
	}
	if rest, ok = strings.CutSuffix(rest, ext); !ok {
		return false
	}
	if rest == "" {
		return true
	}
	n, ok := strings.CutPrefix(rest, "-")
	if !ok {
		return false
	}
	i, err := strconv.Atoi(n)
	return err == nil && i >= 2
}
