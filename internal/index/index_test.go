package index

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func touch(t *testing.T, ws, rel string) {
	t.Helper()
	p := filepath.Join(ws, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(rel), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in     string
		dir    bool
		path   string
		String string
	}{
		{"rules/a.md", false, "rules/a.md", "rules/a.md"},
		{"skills/foo/", true, "skills/foo", "skills/foo/"},
		{"./rules//b.md", false, "rules/b.md", "rules/b.md"},
	}
	for _, tt := range tests {
		k := ParseKey(tt.in)
		if k.IsDir() != tt.dir || k.Path() != tt.path || k.String() != tt.String {
			t.Errorf("ParseKey(%q) = dir %v path %q string %q, want %v %q %q",
				tt.in, k.IsDir(), k.Path(), k.String(), tt.dir, tt.path, tt.String)
		}
	}
	if DirKey("skills/foo") != DirKey("skills/foo/") {
		t.Error("DirKey should ignore a trailing slash")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ws := t.TempDir()
	s := NewStore(ws)
	ctx := context.Background()

	rec := NewRecord("@acme/Security", Stamp{Hash: "abc", Version: "1.0.0"})
	rec.Add(FileKey("rules/a.md"), ".cursor/rules/a.mdc")
	rec.Add(FileKey("rules/a.md"), ".claude/rules/a.md")
	rec.Add(FileKey("rules/a.md"), ".claude/rules/a.md")
	rec.Add(DirKey("skills/scan/"), ".claude/skills/scan/")

	if err := s.Write(ctx, rec); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws, ".agentpkg", "packages", "@acme", "security", "index.yml")); err != nil {
		t.Fatalf("index file not at expected path: %v", err)
	}

	got, err := s.Read(ctx, "@ACME/security")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("Read = %+v, want %+v", got, rec)
	}

	names, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"@acme/security"}) {
		t.Errorf("List = %v", names)
	}

	if err := s.Delete(ctx, "@acme/security"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, err := s.Read(ctx, "@acme/security"); got != nil || err != nil {
		t.Errorf("Read after Delete = %v, %v; want nil, nil", got, err)
	}
	if _, err := os.Stat(filepath.Join(ws, ".agentpkg", "packages", "@acme")); !os.IsNotExist(err) {
		t.Error("empty scope directory should be removed")
	}
}

func TestWriteIsDeterministic(t *testing.T) {
	ws := t.TempDir()
	s := NewStore(ws)
	ctx := context.Background()

	rec := NewRecord("pkg", Stamp{Hash: "h", Version: "1.0.0"})
	for _, p := range []string{"rules/z.md", "rules/a.md", "commands/m.md"} {
		rec.Add(FileKey(p), ".claude/"+p)
	}
	if err := s.Write(ctx, rec); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadFile(s.Path("pkg"))

	again, err := s.Read(ctx, "pkg")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, again); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(s.Path("pkg"))
	if string(first) != string(second) {
		t.Errorf("rewrite changed bytes:\n%s\n---\n%s", first, second)
	}
	if !strings.Contains(string(first), "commands/m.md:") || strings.Index(string(first), "commands/m.md") > strings.Index(string(first), "rules/a.md") {
		t.Errorf("keys not sorted:\n%s", first)
	}
}

func TestRecordPathEdits(t *testing.T) {
	rec := NewRecord("pkg", Stamp{})
	rec.Add(FileKey("rules/a.md"), ".claude/rules/a.md")
	rec.Add(FileKey("rules/a.md"), ".cursor/rules/a.mdc")
	rec.Add(DirKey("skills/x"), ".claude/skills/x/")

	if !rec.ReplacePath(".claude/rules/a.md", ".claude/rules/a.local.md") {
		t.Error("ReplacePath = false")
	}
	if got := rec.Files[FileKey("rules/a.md")]; !reflect.DeepEqual(got, []string{".claude/rules/a.local.md", ".cursor/rules/a.mdc"}) {
		t.Errorf("after replace = %v", got)
	}

	rec.RemovePath(".claude/rules/a.local.md")
	rec.RemovePath(".cursor/rules/a.mdc")
	if _, ok := rec.Files[FileKey("rules/a.md")]; ok {
		t.Error("empty file entry should be deleted")
	}
	if got := rec.DirClaims(); !reflect.DeepEqual(got, []string{".claude/skills/x"}) {
		t.Errorf("DirClaims = %v", got)
	}
}

func TestDetachSplitsDirectoryClaim(t *testing.T) {
	ws := t.TempDir()
	touch(t, ws, ".claude/skills/x/SKILL.md")
	touch(t, ws, ".claude/skills/x/ref/notes.md")
	touch(t, ws, ".claude/skills/x/extra.md")

	a := NewRecord("a", Stamp{})
	a.Add(DirKey("skills/x"), ".claude/skills/x/")
	a.Add(DirKey("skills/y"), ".claude/skills/y/")
	b := NewRecord("b", Stamp{})
	b.Add(FileKey("skills/x/extra.md"), ".claude/skills/x/extra.md")
	own := BuildOwnership(ws, []*Record{a, b}, "")

	if a.Detach(ws, ".claude/skills/y2/SKILL.md", own) {
		t.Error("Detach of an unclaimed path = true")
	}
	if !a.Detach(ws, ".claude/skills/x/SKILL.md", own) {
		t.Fatal("Detach = false")
	}
	want := map[Key][]string{
		FileKey("skills/x/SKILL.md"):     {".claude/skills/x/SKILL.md"},
		FileKey("skills/x/ref/notes.md"): {".claude/skills/x/ref/notes.md"},
		DirKey("skills/y"):               {".claude/skills/y/"},
	}
	if !reflect.DeepEqual(a.Files, want) {
		t.Errorf("Files = %v, want %v", a.Files, want)
	}
}

func TestOwnershipPrecedence(t *testing.T) {
	ws := t.TempDir()
	touch(t, ws, ".claude/skills/x/SKILL.md")
	touch(t, ws, ".claude/skills/x/extra.md")

	a := NewRecord("a", Stamp{})
	a.Add(DirKey("skills/x"), ".claude/skills/x/")
	b := NewRecord("b", Stamp{})
	b.Add(FileKey("skills/x/extra.md"), ".claude/skills/x/extra.md")

	own := BuildOwnership(ws, []*Record{a, b}, "")
	tests := []struct {
		path, want string
	}{
		{".claude/skills/x/SKILL.md", "a"},
		{".claude/skills/x/extra.md", "b"},
		{".claude/skills/x/new/file.md", "a"},
		{".claude/rules/free.md", ""},
	}
	for _, tt := range tests {
		got, ok := own.Owner(tt.path)
		if tt.want == "" {
			if ok {
				t.Errorf("Owner(%s) = %s, want none", tt.path, got.Package)
			}
			continue
		}
		if !ok || got.Package != tt.want {
			t.Errorf("Owner(%s) = %q, want %q", tt.path, got.Package, tt.want)
		}
	}

	// Expansion of a's directory claim must not include b's file.
	if got := a.Expand(ws, own); !reflect.DeepEqual(got, []string{".claude/skills/x/SKILL.md"}) {
		t.Errorf("Expand = %v", got)
	}

	excl := BuildOwnership(ws, []*Record{a, b}, "A")
	if _, ok := excl.Owner(".claude/skills/x/SKILL.md"); ok {
		t.Error("excluded package should not own anything")
	}
	if got := excl.Packages(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Packages = %v", got)
	}
}

func TestStoreOwnershipReadsAll(t *testing.T) {
	ws := t.TempDir()
	s := NewStore(ws)
	ctx := context.Background()
	for _, name := range []string{"one", "two", "three"} {
		rec := NewRecord(name, Stamp{})
		rec.Add(FileKey("rules/"+name+".md"), ".claude/rules/"+name+".md")
		if err := s.Write(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	all, err := s.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Package != "one" || all[2].Package != "two" {
		t.Errorf("ReadAll order = %v", all)
	}

	own, err := s.Ownership(ctx, "two")
	if err != nil {
		t.Fatal(err)
	}
	if got := own.Packages(); !reflect.DeepEqual(got, []string{"one", "three"}) {
		t.Errorf("Packages = %v", got)
	}
}
