package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentx-labs/agentpkg/internal/install"
	"github.com/agentx-labs/agentpkg/internal/registry"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInstallAbortedPromptFails(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("AGENTPKG_HOME", filepath.Join(home, "userhome"))
	regDir := filepath.Join(home, "registry")
	t.Setenv("AGENTPKG_REGISTRY_DIR", regDir)

	src := filepath.Join(home, "pkgs", "alpha")
	writeFile(t, filepath.Join(src, "agentpkg.yml"), "name: alpha\nversion: 1.0.0\n")
	writeFile(t, filepath.Join(src, "rules", "shared.md"), "alpha\n")
	if _, err := registry.New(regDir).Add(context.Background(), src); err != nil {
		t.Fatal(err)
	}

	project := filepath.Join(home, "project")
	writeFile(t, filepath.Join(project, ".claude", "rules", "shared.md"), "mine\n")

	interactive = func() bool { return true }
	t.Cleanup(func() { interactive = stdinIsTerminal })

	// Closed stdin answers the conflict prompt with an abort.
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"install", "alpha", "-p", "claude", "-C", project})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.ExecuteContext(context.Background())
	if !errors.Is(err, install.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "Installation cancelled.") {
		t.Errorf("output %q missing cancellation notice", out.String())
	}

	data, err := os.ReadFile(filepath.Join(project, ".claude", "rules", "shared.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "mine\n" {
		t.Errorf("shared.md = %q, want the user's file untouched", data)
	}
	if _, err := os.Stat(filepath.Join(project, ".agentpkg", "packages", "alpha")); !os.IsNotExist(err) {
		t.Errorf("index record written after abort (stat err = %v)", err)
	}
	if _, err := os.Stat(filepath.Join(project, ".agentpkg", "agentpkg.yml")); !os.IsNotExist(err) {
		t.Errorf("workspace manifest written after abort (stat err = %v)", err)
	}
}
