package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agentx-labs/agentpkg/internal/branding"
	"github.com/agentx-labs/agentpkg/internal/logging"
	"github.com/agentx-labs/agentpkg/internal/manifest"
)

// ErrNotFound is returned when a package or version is absent locally.
var ErrNotFound = errors.New("not in local registry")

// Registry reads packages from a directory tree. It is safe for concurrent use.
type Registry struct {
	Root string

	log      zerolog.Logger
	mu       sync.Mutex
	versions map[string][]string
}

// New returns a registry rooted at root.
func New(root string) *Registry {
	return &Registry{
		Root:     root,
		log:      logging.Get("registry"),
		versions: make(map[string][]string),
	}
}

func (r *Registry) packageDir(name string) string {
	return filepath.Join(r.Root, filepath.FromSlash(manifest.NormalizeName(name)))
}

func (r *Registry) versionDir(name, version string) string {
	return filepath.Join(r.packageDir(name), version)
}

// ListVersions returns the versions of name present locally, highest first.
// Directories without a manifest are ignored. The result is cached for the
// registry's lifetime; see [Registry.Invalidate].
func (r *Registry) ListVersions(ctx context.Context, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := manifest.NormalizeName(name)

	r.mu.Lock()
	cached, ok := r.versions[key]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	entries, err := os.ReadDir(r.packageDir(name))
	if err != nil {
		if os.IsNotExist(err) {
			r.store(key, nil)
			return nil, nil
		}
		return nil, fmt.Errorf("listing versions of %s: %w", name, err)
	}

	var versions []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		mf := filepath.Join(r.packageDir(name), e.Name(), branding.ManifestFile())
		if _, err := os.Stat(mf); err != nil {
			continue
		}
		if e.Name() != manifest.Unversioned {
			if _, err := semver.NewVersion(e.Name()); err != nil {
				r.log.Debug().Str("package", name).Str("dir", e.Name()).Msg("ignoring non-semver version directory")
				continue
			}
		}
		versions = append(versions, e.Name())
	}
	SortVersions(versions)
	r.store(key, versions)
	return versions, nil
}

func (r *Registry) store(key string, versions []string) {
	r.mu.Lock()
	r.versions[key] = versions
	r.mu.Unlock()
}

// Invalidate drops the cached version list for name.
func (r *Registry) Invalidate(name string) {
	r.mu.Lock()
	delete(r.versions, manifest.NormalizeName(name))
	r.mu.Unlock()
}

// HasVersion reports whether name@version exists locally.
func (r *Registry) HasVersion(ctx context.Context, name, version string) (bool, error) {
	versions, err := r.ListVersions(ctx, name)
	if err != nil {
		return false, err
	}
	for _, v := range versions {
		if v == version {
			return true, nil
		}
	}
	return false, nil
}

// Prefetch warms the version cache for names concurrently.
func (r *Registry) Prefetch(ctx context.Context, names []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, name := range names {
		g.Go(func() error {
			_, err := r.ListVersions(ctx, name)
			return err
		})
	}
	return g.Wait()
}

// Names returns every package name in the registry, sorted. Scoped packages
// are reported as "@scope/name".
func (r *Registry) Names(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading registry %s: %w", r.Root, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || shouldExclude(e.Name()) {
			continue
		}
		if !strings.HasPrefix(e.Name(), "@") {
			names = append(names, e.Name())
			continue
		}
		scoped, err := os.ReadDir(filepath.Join(r.Root, e.Name()))
		if err != nil {
			continue
		}
		for _, s := range scoped {
			if s.IsDir() {
				names = append(names, e.Name()+"/"+s.Name())
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// LoadManifest parses and validates the manifest of name@version.
func (r *Registry) LoadManifest(ctx context.Context, name, version string) (*manifest.Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(r.versionDir(name, version), branding.ManifestFile())
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s@%s: %w", name, version, ErrNotFound)
		}
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	result, err := manifest.Validate(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("%s: invalid manifest: %s", path, describeIssues(result.Issues))
	}

	m, err := manifest.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if manifest.NormalizeName(m.Name) != manifest.NormalizeName(name) {
		return nil, fmt.Errorf("%s: manifest name %q does not match registry entry %q", path, m.Name, name)
	}
	if m.EffectiveVersion() != version {
		return nil, fmt.Errorf("%s: manifest version %q does not match directory %q", path, m.EffectiveVersion(), version)
	}
	return m, nil
}

// LoadPackage loads the manifest and every content file of name@version.
func (r *Registry) LoadPackage(ctx context.Context, name, version string) (*Package, error) {
	m, err := r.LoadManifest(ctx, name, version)
	if err != nil {
		return nil, err
	}
	dir := r.versionDir(name, version)
	files, err := readFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("loading %s@%s: %w", name, version, err)
	}
	r.log.Debug().Str("package", name).Str("version", version).Int("files", len(files)).Msg("loaded package")
	return &Package{
		Name:     m.Name,
		Version:  version,
		Dir:      dir,
		Manifest: m,
		Files:    files,
	}, nil
}

func describeIssues(issues []manifest.ValidationIssue) string {
	parts := make([]string, 0, len(issues))
	for _, is := range issues {
		if is.Path == "" {
			parts = append(parts, is.Message)
			continue
		}
		parts = append(parts, is.Path+": "+is.Message)
	}
	return strings.Join(parts, "; ")
}

// SortVersions orders versions highest first. The unversioned sentinel and
// anything unparseable sort last.
func SortVersions(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		vi, ei := semver.NewVersion(versions[i])
		vj, ej := semver.NewVersion(versions[j])
		switch {
		case ei == nil && ej == nil:
			return vi.GreaterThan(vj)
		case ei == nil:
			return true
		case ej == nil:
			return false
		default:
			return versions[i] < versions[j]
		}
	})
}
