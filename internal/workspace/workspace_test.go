package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestHashIsStable(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Open(dir + "/.")
	if a.Hash() != b.Hash() {
		t.Errorf("Hash differs for the same directory: %s vs %s", a.Hash(), b.Hash())
	}
	other, _ := Open(t.TempDir())
	if a.Hash() == other.Hash() {
		t.Error("different workspaces share a hash")
	}
	if st := a.Stamp("1.2.0"); st.Hash != a.Hash() || st.Version != "1.2.0" {
		t.Errorf("Stamp = %+v", st)
	}
}

func TestOpenRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(f); err == nil {
		t.Error("expected error for a file")
	}
}

func TestManifestLifecycle(t *testing.T) {
	ws, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ws.LoadManifest(); !errors.Is(err, ErrNoManifest) {
		t.Fatalf("LoadManifest = %v, want ErrNoManifest", err)
	}

	m, created, err := ws.Init("")
	if err != nil || !created {
		t.Fatalf("Init = %v, %v", created, err)
	}
	if m.Name != filepath.Base(ws.Root) {
		t.Errorf("Name = %q, want directory name", m.Name)
	}
	if _, created, _ := ws.Init("other"); created {
		t.Error("second Init should not recreate")
	}

	if err := ws.Record("code-review", "^1.2.0", false); err != nil {
		t.Fatal(err)
	}
	m, err = ws.LoadManifest()
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Ranges()["code-review"]; got != "^1.2.0" {
		t.Errorf("range = %q, want ^1.2.0", got)
	}

	removed, err := ws.Forget("Code-Review")
	if err != nil || !removed {
		t.Errorf("Forget = %v, %v", removed, err)
	}
	m, _ = ws.LoadManifest()
	if len(m.Packages) != 0 {
		t.Errorf("Packages = %v, want empty", m.Packages)
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	ws, _ := Open(root)
	if _, _, err := ws.Init("proj"); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	found, err := Find(nested)
	if err != nil {
		t.Fatal(err)
	}
	if found.Root != ws.Root {
		t.Errorf("Find = %s, want %s", found.Root, ws.Root)
	}

	lone := t.TempDir()
	found, err = Find(lone)
	if err != nil {
		t.Fatal(err)
	}
	if want, _ := filepath.Abs(lone); found.Root != want {
		t.Errorf("Find without manifest = %s, want %s", found.Root, want)
	}
}

func TestRelAbs(t *testing.T) {
	ws, _ := Open(t.TempDir())
	abs := ws.Abs(".claude/rules/a.md")
	rel, err := ws.Rel(abs)
	if err != nil || rel != ".claude/rules/a.md" {
		t.Errorf("Rel(Abs(x)) = %q, %v", rel, err)
	}
}
