package platform

import (
	"errors"
	"testing"
)

func TestParseUniversalPath(t *testing.T) {
	c := MustLoadBuiltin()
	tests := []struct {
		in       string
		ok       bool
		subdir   string
		rel      string
		platform string
	}{
		{"rules/auth.md", true, "rules", "auth.md", ""},
		{"rules/auth.cursor.md", true, "rules", "auth.md", "cursor"},
		{"commands/foo.cursor/bar.md", true, "commands", "foo/bar.md", "cursor"},
		{"skills/review/SKILL.md", true, "skills", "review/SKILL.md", ""},
		{"rules/v1.2.md", true, "rules", "v1.2.md", ""},
		{"rules/auth.unknown.md", true, "rules", "auth.unknown.md", ""},
		{"rules/team.acme/x.md", true, "rules", "team.acme/x.md", ""},
		{"rules/.cursor.md", true, "rules", ".cursor.md", ""},
		{"docs/guide.md", false, "", "", ""},
		{"rules", false, "", "", ""},
		{"README.md", false, "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			u, ok := c.ParseUniversalPath(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if u.Subdir != tt.subdir || u.RelPath != tt.rel || u.Platform != tt.platform {
				t.Errorf("got {%q %q %q}, want {%q %q %q}", u.Subdir, u.RelPath, u.Platform, tt.subdir, tt.rel, tt.platform)
			}
		})
	}
}

func TestUniversalPathRoundTrip(t *testing.T) {
	c := MustLoadBuiltin()
	for _, p := range []string{
		"rules/auth.md",
		"rules/auth.cursor.md",
		"commands/foo.cursor/bar.md",
		"skills/review.claude/scripts/run.sh",
		"agents/nested/dir/helper.opencode.md",
	} {
		u, ok := c.ParseUniversalPath(p)
		if !ok {
			t.Fatalf("ParseUniversalPath(%q) failed", p)
		}
		if got := u.String(); got != p {
			t.Errorf("round trip %q -> %q", p, got)
		}
	}
}

func TestSuffixFormsResolveToSameTarget(t *testing.T) {
	c := MustLoadBuiltin()

	fileForm, _ := c.ParseUniversalPath("rules/base.cursor.md")
	got, err := c.ResolvePlatformPath(fileForm.Subdir, fileForm.RelPath, fileForm.Platform)
	if err != nil {
		t.Fatal(err)
	}
	if got.File != ".cursor/rules/base.mdc" {
		t.Errorf("file form target = %q, want %q", got.File, ".cursor/rules/base.mdc")
	}

	dirForm, _ := c.ParseUniversalPath("commands/dir.cursor/file.md")
	got, err = c.ResolvePlatformPath(dirForm.Subdir, dirForm.RelPath, dirForm.Platform)
	if err != nil {
		t.Fatal(err)
	}
	if got.File != ".cursor/commands/dir/file.md" {
		t.Errorf("dir form target = %q, want %q", got.File, ".cursor/commands/dir/file.md")
	}
	if got.Dir != ".cursor/commands/dir" {
		t.Errorf("dir form Dir = %q, want %q", got.Dir, ".cursor/commands/dir")
	}
}

func TestResolvePlatformPath(t *testing.T) {
	c := MustLoadBuiltin()
	tests := []struct {
		subdir, rel, platform string
		want                  string
		err                   error
	}{
		{"rules", "auth.md", "claude", ".claude/rules/auth.md", nil},
		{"rules", "auth.md", "cursor", ".cursor/rules/auth.mdc", nil},
		{"rules", "auth.mdc", "cursor", ".cursor/rules/auth.mdc", nil},
		{"rules", "auth.md", "copilot", ".github/instructions/auth.instructions.md", nil},
		{"rules", "auth.instructions.md", "copilot", ".github/instructions/auth.instructions.md", nil},
		{"commands", "deploy.md", "gemini", ".gemini/commands/deploy.toml", nil},
		{"rules", "auth.md", "cline", ".clinerules/auth.md", nil},
		{"skills", "review/run.sh", "claude", ".claude/skills/review/run.sh", nil},
		{"rules", "auth.md", "gemini", "", ErrUnsupportedSubdir},
		{"rules", "auth.txt", "claude", "", ErrExtensionNotAllowed},
		{"rules", "auth.md", "nope", "", ErrUnknownPlatform},
	}
	for _, tt := range tests {
		got, err := c.ResolvePlatformPath(tt.subdir, tt.rel, tt.platform)
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Errorf("ResolvePlatformPath(%s, %s, %s) error = %v, want %v", tt.subdir, tt.rel, tt.platform, err, tt.err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolvePlatformPath(%s, %s, %s) unexpected error: %v", tt.subdir, tt.rel, tt.platform, err)
			continue
		}
		if got.File != tt.want {
			t.Errorf("ResolvePlatformPath(%s, %s, %s) = %q, want %q", tt.subdir, tt.rel, tt.platform, got.File, tt.want)
		}
	}
}

func TestToUniversal(t *testing.T) {
	c := MustLoadBuiltin()
	tests := []struct {
		in       string
		platform string
		base     string
		ok       bool
	}{
		{".cursor/rules/auth.mdc", "cursor", "rules/auth.md", true},
		{".cursor/rules/legacy.md", "cursor", "rules/legacy.md", true},
		{".github/instructions/auth.instructions.md", "copilot", "rules/auth.md", true},
		{".gemini/commands/deploy.toml", "gemini", "commands/deploy.md", true},
		{".claude/skills/review/run.sh", "claude", "skills/review/run.sh", true},
		{".claude/settings.json", "", "", false},
		{"src/main.go", "", "", false},
	}
	for _, tt := range tests {
		id, u, ok := c.ToUniversal(tt.in)
		if ok != tt.ok || id != tt.platform || (ok && u.Base() != tt.base) {
			t.Errorf("ToUniversal(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.in, id, u.Base(), ok, tt.platform, tt.base, tt.ok)
		}
	}
}

func TestExtensionTranslationIsBidirectional(t *testing.T) {
	rules := []ExtRule{{Package: ".md", Workspace: ".instructions.md"}}
	for _, in := range []string{"a.md", "dir/b.md", "c.txt"} {
		ws := ToWorkspaceExt(in, rules)
		if back := FromWorkspaceExt(ws, rules); back != in {
			t.Errorf("%q -> %q -> %q", in, ws, back)
		}
	}
}
