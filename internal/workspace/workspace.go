package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/agentx-labs/agentpkg/internal/branding"
	"github.com/agentx-labs/agentpkg/internal/index"
	"github.com/agentx-labs/agentpkg/internal/manifest"
)

// ErrNoManifest is returned when the workspace has no manifest yet.
var ErrNoManifest = errors.New("workspace has no manifest")

// Workspace is a project directory that packages are installed into.
type Workspace struct {
	Root string // absolute
}

// Open returns the workspace rooted at dir.
func Open(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("opening workspace: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace %s is not a directory", abs)
	}
	return &Workspace{Root: abs}, nil
}

// Find walks up from start to the nearest directory holding a workspace
// manifest. It returns start itself when none is found.
func Find(start string) (*Workspace, error) {
	ws, err := Open(start)
	if err != nil {
		return nil, err
	}
	for dir := ws.Root; ; {
		if _, err := os.Stat((&Workspace{Root: dir}).ManifestPath()); err == nil {
			return &Workspace{Root: dir}, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ws, nil
		}
		dir = parent
	}
}

// MetaDir returns <root>/.agentpkg.
func (w *Workspace) MetaDir() string {
	return filepath.Join(w.Root, branding.HomeDir())
}

// ManifestPath returns the workspace manifest path.
func (w *Workspace) ManifestPath() string {
	return filepath.Join(w.MetaDir(), branding.ManifestFile())
}

// Hash is a stable identifier for the workspace location.
func (w *Workspace) Hash() string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(w.Root))).String()
}

// Stamp returns the index stamp for a package installed at version.
func (w *Workspace) Stamp(version string) index.Stamp {
	return index.Stamp{Hash: w.Hash(), Version: version}
}

// Index returns the index store of the workspace.
func (w *Workspace) Index() *index.Store {
	return index.NewStore(w.Root)
}

// LoadManifest reads the workspace manifest. It returns ErrNoManifest when
// the file does not exist.
func (w *Workspace) LoadManifest() (*manifest.Manifest, error) {
	path := w.ManifestPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrNoManifest
	}
	m, err := manifest.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if issues := manifest.CheckVersions(m); len(issues) > 0 {
		return nil, fmt.Errorf("%s: %s: %s", path, issues[0].Path, issues[0].Message)
	}
	return m, nil
}

// SaveManifest writes m as the workspace manifest.
func (w *Workspace) SaveManifest(m *manifest.Manifest) error {
	return manifest.WriteFile(w.ManifestPath(), m)
}

// Init creates the workspace manifest if missing. It returns the manifest
// and whether it was created.
func (w *Workspace) Init(name string) (*manifest.Manifest, bool, error) {
	m, err := w.LoadManifest()
	if err == nil {
		return m, false, nil
	}
	if !errors.Is(err, ErrNoManifest) {
		return nil, false, err
	}
	if name == "" {
		name = filepath.Base(w.Root)
	}
	m = &manifest.Manifest{Name: name}
	if err := w.SaveManifest(m); err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// Record adds name with versionRange to the workspace manifest, creating
// the manifest if needed.
func (w *Workspace) Record(name, versionRange string, dev bool) error {
	m, _, err := w.Init("")
	if err != nil {
		return err
	}
	m.AddDependency(name, versionRange, dev)
	return w.SaveManifest(m)
}

// Forget removes name from the workspace manifest. A missing manifest is
// not an error.
func (w *Workspace) Forget(name string) (bool, error) {
	m, err := w.LoadManifest()
	if errors.Is(err, ErrNoManifest) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !m.RemoveDependency(name) {
		return false, nil
	}
	return true, w.SaveManifest(m)
}

// Rel converts an absolute path inside the workspace to a slash-separated
// workspace-relative path.
func (w *Workspace) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(w.Root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Abs converts a workspace-relative slash path to an absolute path.
func (w *Workspace) Abs(rel string) string {
	return filepath.Join(w.Root, filepath.FromSlash(rel))
}
