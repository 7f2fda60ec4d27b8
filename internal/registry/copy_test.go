package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestAddCopiesPackage(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src")
	writeFile(t, src, "agentpkg.yml", "name: Code-Review\nversion: 1.0.0\n")
	writeFile(t, src, "rules/review.md", "# review\n")
	writeFile(t, src, "node_modules/dep/index.js", "x")
	writeFile(t, src, ".git/HEAD", "ref")
	writeFile(t, src, ".DS_Store", "")

	reg := New(filepath.Join(tmpDir, "registry"))
	ctx := context.Background()

	// Prime the cache so Add must invalidate it.
	if v, _ := reg.ListVersions(ctx, "code-review"); len(v) != 0 {
		t.Fatalf("ListVersions before Add = %v, want empty", v)
	}

	m, err := reg.Add(ctx, src)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if m.Name != "Code-Review" {
		t.Errorf("Name = %q, want %q", m.Name, "Code-Review")
	}

	dst := filepath.Join(tmpDir, "registry", "code-review", "1.0.0")
	if _, err := os.Stat(filepath.Join(dst, "rules", "review.md")); err != nil {
		t.Errorf("content not copied: %v", err)
	}
	for _, excluded := range []string{"node_modules", ".git", ".DS_Store"} {
		if _, err := os.Stat(filepath.Join(dst, excluded)); !os.IsNotExist(err) {
			t.Errorf("%s should be excluded", excluded)
		}
	}

	versions, err := reg.ListVersions(ctx, "code-review")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 || versions[0] != "1.0.0" {
		t.Errorf("ListVersions after Add = %v, want [1.0.0]", versions)
	}
}

func TestAddUnversioned(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src")
	writeFile(t, src, "agentpkg.yml", "name: scratch\n")

	reg := New(filepath.Join(tmpDir, "registry"))
	if _, err := reg.Add(context.Background(), src); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ok, err := reg.HasVersion(context.Background(), "scratch", "unversioned")
	if err != nil || !ok {
		t.Errorf("HasVersion(scratch, unversioned) = %v, %v; want true, nil", ok, err)
	}
}

func TestAddRejectsInvalidManifest(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"missing name", "version: 1.0.0\n"},
		{"bad version", "name: x\nversion: latest\n"},
		{"bad range", "name: x\nversion: 1.0.0\npackages:\n  - name: y\n    version: \"~~1\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			src := filepath.Join(tmpDir, "src")
			writeFile(t, src, "agentpkg.yml", tt.manifest)
			if _, err := New(filepath.Join(tmpDir, "registry")).Add(context.Background(), src); err == nil {
				t.Error("expected error")
			}
		})
	}
}
