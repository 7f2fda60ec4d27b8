package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agentx-labs/agentpkg/internal/manifest"
	"github.com/agentx-labs/agentpkg/internal/registry"
	"github.com/agentx-labs/agentpkg/internal/remote"
)

// memInventory is an in-memory registry: name -> version -> manifest.
type memInventory map[string]map[string]*manifest.Manifest

// add registers name@version with deps given as "dep@range" strings.
// A "dev:" prefix makes the entry a dev-package.
func (m memInventory) add(name, version string, deps ...string) {
	mf := &manifest.Manifest{Name: name, Version: version}
	for _, d := range deps {
		dev := strings.HasPrefix(d, "dev:")
		d = strings.TrimPrefix(d, "dev:")
		n, r, _ := strings.Cut(d, "@")
		mf.AddDependency(n, r, dev)
	}
	key := manifest.NormalizeName(name)
	if m[key] == nil {
		m[key] = map[string]*manifest.Manifest{}
	}
	m[key][version] = mf
}

func (m memInventory) ListVersions(_ context.Context, name string) ([]string, error) {
	var out []string
	for v := range m[manifest.NormalizeName(name)] {
		out = append(out, v)
	}
	registry.SortVersions(out)
	return out, nil
}

func (m memInventory) LoadManifest(_ context.Context, name, version string) (*manifest.Manifest, error) {
	mf, ok := m[manifest.NormalizeName(name)][version]
	if !ok {
		return nil, fmt.Errorf("%s@%s: %w", name, version, registry.ErrNotFound)
	}
	return mf, nil
}

func (m memInventory) Names(context.Context) ([]string, error) {
	var out []string
	for n := range m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// memRemote serves versions from an inventory, or fails every call with err.
type memRemote struct {
	inv   memInventory
	err   error
	calls int
}

func (r *memRemote) FetchMetadata(ctx context.Context, name, version string) (*remote.Info, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	versions, _ := r.inv.ListVersions(ctx, name)
	if len(versions) == 0 {
		return nil, &remote.Failure{Name: name, Reason: remote.ReasonNotFound}
	}
	if version == "" {
		return &remote.Info{Name: name, Versions: versions}, nil
	}
	mf, err := r.inv.LoadManifest(ctx, name, version)
	if err != nil {
		return nil, &remote.Failure{Name: name, Reason: remote.ReasonNotFound, Err: err}
	}
	return &remote.Info{Name: name, Version: version, Manifest: mf}, nil
}

// answer is a canned OverwriteConfirmer.
type answer struct {
	yes   bool
	asked []string
}

func (a *answer) ConfirmOverwrite(_ context.Context, name, current, candidate string) (bool, error) {
	a.asked = append(a.asked, fmt.Sprintf("%s %s->%s", name, current, candidate))
	return a.yes, nil
}
