package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"

	"github.com/agentx-labs/agentpkg/internal/branding"
	"github.com/agentx-labs/agentpkg/internal/logging"
	"github.com/agentx-labs/agentpkg/internal/manifest"
)

const fileName = "index.yml"

type fileFormat struct {
	Package   string              `yaml:"package"`
	Workspace Stamp               `yaml:"workspace"`
	Files     map[string][]string `yaml:"files"`
}

// Store reads and writes records below one workspace.
type Store struct {
	Workspace string
	log       zerolog.Logger
}

// NewStore returns a store for workspace.
func NewStore(workspace string) *Store {
	return &Store{Workspace: workspace, log: logging.Get("index")}
}

// Dir returns the directory holding every record.
func (s *Store) Dir() string {
	return filepath.Join(s.Workspace, branding.HomeDir(), "packages")
}

// Path returns the record file for name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.Dir(), filepath.FromSlash(manifest.NormalizeName(name)), fileName)
}

// Read returns the record for name, or nil, nil when none exists.
func (s *Store) Read(ctx context.Context, name string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading index for %s: %w", name, err)
	}

	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parsing index for %s: %w", name, err)
	}
	rec := NewRecord(ff.Package, ff.Workspace)
	if rec.Package == "" {
		rec.Package = name
	}
	for k, list := range ff.Files {
		key := ParseKey(k)
		for _, p := range list {
			rec.Add(key, p)
		}
	}
	return rec, nil
}

// Write persists rec atomically. Output is deterministic: keys and values
// are sorted.
func (s *Store) Write(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ff := fileFormat{
		Package:   rec.Package,
		Workspace: rec.Workspace,
		Files:     make(map[string][]string, len(rec.Files)),
	}
	for k, list := range rec.Files {
		sorted := append([]string(nil), list...)
		sort.Strings(sorted)
		ff.Files[k.String()] = sorted
	}

	data, err := yaml.Marshal(&ff)
	if err != nil {
		return fmt.Errorf("marshaling index for %s: %w", rec.Package, err)
	}

	path := s.Path(rec.Package)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing index for %s: %w", rec.Package, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving index for %s: %w", rec.Package, err)
	}
	s.log.Debug().Str("package", rec.Package).Int("keys", len(rec.Files)).Msg("index written")
	return nil
}

// Delete removes the record for name. A missing record is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Path(name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting index for %s: %w", name, err)
	}
	// Drop the now-empty package directory and, for scoped names, the scope.
	for dir := filepath.Dir(path); dir != s.Dir() && strings.HasPrefix(dir, s.Dir()); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			break
		}
	}
	return nil
}

// List returns the names of every package with a record, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	err := filepath.WalkDir(s.Dir(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || d.Name() != fileName {
			return nil
		}
		rel, err := filepath.Rel(s.Dir(), filepath.Dir(p))
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing index records: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// ReadAll reads every record concurrently, in name order.
func (s *Store) ReadAll(ctx context.Context) ([]*Record, error) {
	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]*Record, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, name := range names {
		g.Go(func() error {
			rec, err := s.Read(ctx, name)
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := records[:0]
	for _, r := range records {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// Ownership loads every record except exclude and builds the owner map.
func (s *Store) Ownership(ctx context.Context, exclude string) (*Ownership, error) {
	records, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return BuildOwnership(s.Workspace, records, exclude), nil
}

// Owner identifies the record claiming a path.
type Owner struct {
	Package string
	Key     Key
}

// Ownership maps workspace paths to the packages that own them.
type Ownership struct {
	mu    sync.RWMutex
	files map[string]Owner
	dirs  map[string]Owner
}

// BuildOwnership indexes records, skipping the one for exclude. Directory
// claims are expanded by walking the workspace; file-level claims take
// precedence over them.
func BuildOwnership(workspace string, records []*Record, exclude string) *Ownership {
	o := &Ownership{files: make(map[string]Owner), dirs: make(map[string]Owner)}
	skip := manifest.NormalizeName(exclude)
	for _, rec := range records {
		if exclude != "" && manifest.NormalizeName(rec.Package) == skip {
			continue
		}
		for k, list := range rec.Files {
			if !k.IsDir() {
				continue
			}
			owner := Owner{Package: rec.Package, Key: k}
			for _, v := range list {
				dir := strings.TrimSuffix(v, "/")
				o.dirs[dir] = owner
				for _, f := range walkFiles(workspace, dir) {
					o.files[f] = owner
				}
			}
		}
	}
	for _, rec := range records {
		if exclude != "" && manifest.NormalizeName(rec.Package) == skip {
			continue
		}
		for k, list := range rec.Files {
			if k.IsDir() {
				continue
			}
			for _, v := range list {
				o.files[v] = Owner{Package: rec.Package, Key: k}
			}
		}
	}
	return o
}

// Owner returns the owner of p: an exact file claim, else the nearest
// claimed ancestor directory.
func (o *Ownership) Owner(p string) (Owner, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if ow, ok := o.files[p]; ok {
		return ow, true
	}
	for dir := parentDir(p); dir != ""; dir = parentDir(dir) {
		if ow, ok := o.dirs[dir]; ok {
			return ow, true
		}
	}
	return Owner{}, false
}

// Set records owner as the file-level owner of p.
func (o *Ownership) Set(p string, owner Owner) {
	o.mu.Lock()
	o.files[p] = owner
	o.mu.Unlock()
}

// Release removes any file-level claim on p.
func (o *Ownership) Release(p string) {
	o.mu.Lock()
	delete(o.files, p)
	o.mu.Unlock()
}

// Packages returns the distinct owning packages, sorted.
func (o *Ownership) Packages() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	seen := make(map[string]bool)
	for _, ow := range o.files {
		seen[ow.Package] = true
	}
	for _, ow := range o.dirs {
		seen[ow.Package] = true
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func parentDir(p string) string {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return ""
	}
	return p[:i]
}
